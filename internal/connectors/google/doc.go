// Package google provides shared infrastructure for the Google API clients.
//
// This package contains common utilities used by the bigquery, storage,
// drive, gmail, compute and dataproc packages including:
//   - Service factories and client options (credentials file, token provider, ADC)
//   - TokenSource adapter to bridge a TokenProvider to oauth2.TokenSource
//   - Error classification for Google API errors (401, 403, 404, 409, 429, 5xx)
//   - A Retryer applying the retry budget with gax exponential backoff
//   - Rate limiting to respect Google API quotas
//   - RecordPager for listing any REST collection as raw JSON
//   - Prometheus counters for every remote call
//
// # Usage
//
// Each service package builds its client from a Config and a Retryer:
//
//	cfg := google.Config{CredentialsFile: path}
//	svc, err := google.NewBigQueryService(ctx, cfg)
//	retryer := google.NewRetryer(google.DefaultRetryConfig(), google.NewRateLimiter(google.ServiceBigQuery))
//	resp, err := google.Call(ctx, retryer, "bigquery.jobs.get", func(ctx context.Context) (*bigquery.Job, error) {
//		return svc.Jobs.Get(project, id).Context(ctx).Do()
//	})
//
// Failures that survive the retry budget surface as *domain.TransportError
// wrapping one of this package's sentinels and the original *googleapi.Error.
//
// # OAuth2 Scopes
//
//   - https://www.googleapis.com/auth/bigquery (BigQuery)
//   - https://www.googleapis.com/auth/cloud-platform (Storage, Dataproc)
//   - https://www.googleapis.com/auth/drive (Drive)
//   - https://mail.google.com/ (Gmail)
//   - https://www.googleapis.com/auth/compute (Compute Engine)
package google
