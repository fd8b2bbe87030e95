package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aimeuniverse/contentsync/internal/domain"
)

// airtableListCost is the quota charge for one record listing page.
const airtableListCost = 1

// AirtableAdapter fetches rows from a structured base table.
type AirtableAdapter struct {
	opts   Options
	client *httpClient
	baseID string
	table  string
	kind   string
}

// NewAirtableAdapter creates an Airtable provider adapter.
func NewAirtableAdapter(opts Options) *AirtableAdapter {
	return &AirtableAdapter{
		opts:   opts,
		client: newHTTPClient(opts.Timeout, map[string]string{"Authorization": "Bearer " + opts.APIKey}),
		baseID: opts.extra("base_id", ""),
		table:  opts.extra("table", "Content"),
		kind:   opts.extra("kind", string(domain.KindDocument)),
	}
}

// Name returns the provider's registry name.
func (a *AirtableAdapter) Name() string { return "airtable" }

// airtableListResponse mirrors the record listing API.
type airtableListResponse struct {
	Offset  string `json:"offset"`
	Records []struct {
		ID          string         `json:"id"`
		CreatedTime time.Time      `json:"createdTime"`
		Fields      map[string]any `json:"fields"`
	} `json:"records"`
}

// FetchBatch pages through the table. Incremental mode filters on the
// server with LAST_MODIFIED_TIME() so unchanged rows never cross the
// wire; full mode enumerates every row.
func (a *AirtableAdapter) FetchBatch(ctx context.Context, cursor string, mode Mode) (*Batch, error) {
	if a.baseID == "" {
		return nil, &FetchError{Provider: a.Name(), Err: fmt.Errorf("airtable adapter requires extra.base_id")}
	}

	batch := &Batch{NextCursor: time.Now().UTC().Format(time.RFC3339)}
	offset := ""

	for page := 0; page < a.opts.MaxPages; page++ {
		resp, err := a.fetchPage(ctx, cursor, mode, offset)
		batch.Cost += airtableListCost
		if err != nil {
			return nil, &FetchError{Provider: a.Name(), Cost: batch.Cost, Err: err}
		}

		for _, rec := range resp.Records {
			batch.Records = append(batch.Records, a.normalize(rec.ID, rec.CreatedTime, rec.Fields))
		}

		if resp.Offset == "" {
			break
		}
		offset = resp.Offset
	}

	return batch, nil
}

// fetchPage retrieves one listing page.
func (a *AirtableAdapter) fetchPage(
	ctx context.Context,
	cursor string,
	mode Mode,
	offset string,
) (*airtableListResponse, error) {
	q := url.Values{}
	q.Set("pageSize", fmt.Sprintf("%d", a.opts.PageSize))
	if offset != "" {
		q.Set("offset", offset)
	}

	if mode == ModeIncremental && cursor != "" {
		formula := fmt.Sprintf("IS_AFTER(LAST_MODIFIED_TIME(), %q)", cursor)
		q.Set("filterByFormula", formula)
	}

	endpoint := fmt.Sprintf("%s/%s/%s?%s", a.opts.BaseURL, a.baseID, url.PathEscape(a.table), q.Encode())

	var resp airtableListResponse
	if err := a.client.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// normalize maps one Airtable row onto the canonical record shape.
// Well-known field names map to title/body/url; everything else is
// preserved in the open attributes map.
func (a *AirtableAdapter) normalize(id string, created time.Time, fields map[string]any) domain.RawRecord {
	title := stringField(fields, "Name", "Title")
	body := stringField(fields, "Description", "Notes", "Body")
	externalURL := stringField(fields, "URL", "Link")

	modified := created
	if ts := stringField(fields, "Last Modified"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			modified = parsed
		}
	}

	attrs := make(map[string]any, len(fields))
	for k, v := range fields {
		attrs[k] = v
	}

	return domain.RawRecord{
		ProviderRecordID:  id,
		Kind:              a.kind,
		Title:             title,
		Body:              body,
		ExternalURL:       externalURL,
		Attributes:        attrs,
		Fingerprint:       Fingerprint(id, fieldsSignal(fields), timeSignal(&modified)),
		ProviderCreatedAt: &created,
		ProviderUpdatedAt: &modified,
	}
}

// stringField returns the first present string field among names.
func stringField(fields map[string]any, names ...string) string {
	for _, name := range names {
		if v, ok := fields[name].(string); ok {
			return v
		}
	}
	return ""
}

// fieldsSignal renders the field map deterministically for fingerprinting.
// Key order from a Go map is random, so keys are sorted first.
func fieldsSignal(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v, _ := json.Marshal(fields[k])
		b.WriteString(k)
		b.WriteByte('=')
		b.Write(v)
		b.WriteByte(';')
	}

	return b.String()
}
