package drive

import "google.golang.org/api/drive/v3"

// WebURL returns a browser link for a file.
// The webViewLink returned by the API takes precedence over the generic viewer URL.
func WebURL(file *drive.File) string {
	if file == nil {
		return ""
	}
	if file.WebViewLink != "" {
		return file.WebViewLink
	}
	if file.Id == "" {
		return ""
	}
	return "https://drive.google.com/file/d/" + file.Id + "/view"
}
