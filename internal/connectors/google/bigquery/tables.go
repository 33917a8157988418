package bigquery

import (
	"context"
	"strings"

	bq "google.golang.org/api/bigquery/v2"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/logger"
)

// Table types reported in Table.Type.
const (
	TypeTable    = "TABLE"
	TypeView     = "VIEW"
	TypeExternal = "EXTERNAL"
)

// WriteTable runs query into dest. An existing view at dest is deleted first,
// since a query job cannot overwrite a view.
func (c *Client) WriteTable(ctx context.Context, projectID, query string, dest TableRef, opts QueryOptions) (*bq.Job, error) {
	if projectID == "" || query == "" {
		return nil, domain.Invalid("project and query are required")
	}
	if err := dest.Validate(); err != nil {
		return nil, err
	}

	existing, err := c.GetTable(ctx, dest)
	switch {
	case err == nil && existing.Type == TypeView:
		logger.Info("deleting view %s before writing table", dest)
		if err := c.DeleteTable(ctx, dest); err != nil {
			return nil, err
		}
	case err != nil && !google.IsNotFound(err):
		return nil, err
	}

	job := &bq.Job{
		JobReference:  &bq.JobReference{ProjectId: projectID},
		Configuration: &bq.JobConfiguration{Query: opts.config(query, dest)},
	}
	return c.insertJob(ctx, projectID, job, nil, opts.Async)
}

// WriteView creates a view at dest. When the table exists and overwrite is
// set, the existing table is deleted and the view inserted again.
func (c *Client) WriteView(ctx context.Context, query string, dest TableRef, udfResourceURIs []string, overwrite bool) (*bq.Table, error) {
	if query == "" {
		return nil, domain.Invalid("view query is required")
	}
	if err := dest.Validate(); err != nil {
		return nil, err
	}
	view := &bq.ViewDefinition{Query: query}
	for _, uri := range udfResourceURIs {
		view.UserDefinedFunctionResources = append(view.UserDefinedFunctionResources,
			&bq.UserDefinedFunctionResource{ResourceUri: uri})
	}
	return c.insertTable(ctx, dest, &bq.Table{TableReference: dest.reference(), View: view}, overwrite)
}

// FederatedOptions configures an external table.
type FederatedOptions struct {
	SourceFormat        string
	Compression         string
	SkipLeadingRows     *int64
	FieldDelimiter      string
	AllowQuotedNewlines bool

	// Overwrite replaces an existing table at the destination.
	Overwrite bool
}

// WriteFederatedTable creates an external table over Cloud Storage objects.
func (c *Client) WriteFederatedTable(ctx context.Context, dest TableRef, schema []*bq.TableFieldSchema, sourceURIs []string, opts FederatedOptions) (*bq.Table, error) {
	if err := dest.Validate(); err != nil {
		return nil, err
	}
	if len(sourceURIs) == 0 {
		return nil, domain.Invalid("at least one source uri is required")
	}

	skip := int64(0)
	if opts.SourceFormat == "" || opts.SourceFormat == "CSV" {
		skip = 1
	}
	if opts.SkipLeadingRows != nil {
		skip = *opts.SkipLeadingRows
	}
	ext := &bq.ExternalDataConfiguration{
		SourceUris:   sourceURIs,
		SourceFormat: orDefault(opts.SourceFormat, "CSV"),
		Compression:  opts.Compression,
		CsvOptions: &bq.CsvOptions{
			SkipLeadingRows:     skip,
			FieldDelimiter:      opts.FieldDelimiter,
			AllowQuotedNewlines: opts.AllowQuotedNewlines,
		},
	}
	if len(schema) > 0 {
		ext.Schema = &bq.TableSchema{Fields: schema}
	}
	return c.insertTable(ctx, dest, &bq.Table{TableReference: dest.reference(), ExternalDataConfiguration: ext}, opts.Overwrite)
}

func (c *Client) insertTable(ctx context.Context, dest TableRef, table *bq.Table, overwrite bool) (*bq.Table, error) {
	insert := func() (*bq.Table, error) {
		return google.Call(ctx, c.retryer, "bigquery.tables.insert", func(ctx context.Context) (*bq.Table, error) {
			return c.svc.Tables.Insert(dest.ProjectID, dest.DatasetID, table).Context(ctx).Do()
		})
	}

	created, err := insert()
	if err == nil || !overwrite || !google.IsConflict(err) {
		return created, err
	}

	logger.Info("replacing existing table %s", dest)
	if err := c.DeleteTable(ctx, dest); err != nil {
		return nil, err
	}
	return insert()
}

// UpdateTableInfo patches a table's description and the attributes of
// existing schema fields. Fields are matched by name; a field that does not
// exist in the table is rejected rather than added. A nil description and
// empty fields leave the respective part unchanged.
func (c *Client) UpdateTableInfo(ctx context.Context, ref TableRef, description *string, fields []*bq.TableFieldSchema) (*bq.Table, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	patch := &bq.Table{TableReference: ref.reference()}
	if description != nil {
		patch.Description = *description
		patch.ForceSendFields = append(patch.ForceSendFields, "Description")
	}

	if len(fields) > 0 {
		current, err := c.GetTable(ctx, ref)
		if err != nil {
			return nil, err
		}
		if current.Schema == nil {
			return nil, domain.Invalid("table %s has no schema to update", ref)
		}
		merged, err := mergeFields(current.Schema.Fields, fields)
		if err != nil {
			return nil, err
		}
		patch.Schema = &bq.TableSchema{Fields: merged}
	}

	return google.Call(ctx, c.retryer, "bigquery.tables.patch", func(ctx context.Context) (*bq.Table, error) {
		return c.svc.Tables.Patch(ref.ProjectID, ref.DatasetID, ref.TableID, patch).Context(ctx).Do()
	})
}

// mergeFields applies the non-empty attributes of each update to the field
// of the same name. The whole field list is returned since a patch replaces it.
func mergeFields(current, updates []*bq.TableFieldSchema) ([]*bq.TableFieldSchema, error) {
	byName := make(map[string]*bq.TableFieldSchema, len(current))
	merged := make([]*bq.TableFieldSchema, len(current))
	for i, f := range current {
		cp := *f
		merged[i] = &cp
		byName[f.Name] = &cp
	}

	for _, u := range updates {
		target, ok := byName[u.Name]
		if !ok {
			return nil, domain.Invalid("schema field %q does not exist", u.Name)
		}
		if u.Description != "" {
			target.Description = u.Description
		}
		if u.Type != "" {
			target.Type = u.Type
		}
		if u.Mode != "" {
			target.Mode = u.Mode
		}
		if len(u.Fields) > 0 {
			target.Fields = u.Fields
		}
	}
	return merged, nil
}

// TableSchema builds schema fields from name/type pairs, e.g. "id:INTEGER".
func TableSchema(specs ...string) ([]*bq.TableFieldSchema, error) {
	fields := make([]*bq.TableFieldSchema, 0, len(specs))
	for _, spec := range specs {
		name, typ, ok := strings.Cut(spec, ":")
		if !ok || name == "" || typ == "" {
			return nil, domain.Invalid("schema field %q is not name:TYPE", spec)
		}
		fields = append(fields, &bq.TableFieldSchema{Name: name, Type: typ})
	}
	return fields, nil
}
