// Package api reads inspection submissions from the paginated REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/agentstation/branchmap/internal/transport"
	"github.com/agentstation/branchmap/pkg/constants"
	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/inspections"
	"github.com/agentstation/branchmap/pkg/logging"
)

// Name is the source name stamped on every record from the API.
const Name = "api"

// Config holds the connection settings for the inspection API.
type Config struct {
	URL           string
	Token         string
	Auth          string // see transport.ParseAuth
	PageSize      int
	RatePerSecond float64
}

// Source fetches every submission page by page.
type Source struct {
	client   *transport.Client
	endpoint *url.URL
	pageSize int
}

// New creates an API source. Extra transport options are applied last.
func New(cfg Config, opts ...transport.Option) (*Source, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.NewConfigError("api", "api.url is required", nil)
	}
	endpoint, err := url.Parse(cfg.URL)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, errors.NewConfigError("api", fmt.Sprintf("invalid api.url %q", cfg.URL), err)
	}
	auth, err := transport.ParseAuth(cfg.Auth)
	if err != nil {
		return nil, errors.NewConfigError("api", "invalid api.auth", err)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	ratePerSecond := cfg.RatePerSecond
	if ratePerSecond == 0 {
		ratePerSecond = constants.DefaultRatePerSecond
	}

	base := []transport.Option{
		transport.WithAuth(auth, cfg.Token),
		transport.WithRate(ratePerSecond),
		transport.WithSourceName(Name),
	}
	return &Source{
		client:   transport.New(append(base, opts...)...),
		endpoint: endpoint,
		pageSize: pageSize,
	}, nil
}

// Name implements ingest.Source.
func (s *Source) Name() string {
	return Name
}

// Fetch implements ingest.Source. It walks next_page links until the API
// reports none.
func (s *Source) Fetch(ctx context.Context) ([]inspections.RawRecord, error) {
	logger := logging.FromContext(ctx)

	var records []inspections.RawRecord
	pageNum := 1
	for pages := 0; ; pages++ {
		if pages >= constants.MaxPages {
			return nil, errors.NewAPIError(Name, 0, fmt.Sprintf("more than %d pages", constants.MaxPages))
		}

		p, err := s.fetchPage(ctx, pageNum)
		if err != nil {
			return nil, err
		}
		for i, item := range p.Data {
			var rec inspections.RawRecord
			var sub submission
			if err := json.Unmarshal(item, &sub); err != nil {
				// An empty id makes the normalizer reject the record on its own row.
				logger.Warn().Err(err).Int("page", pageNum).Int("item", i).Msg("unreadable inspection record")
			} else {
				rec = sub.record()
			}
			rec.Source = Name
			rec.Row = len(records) + 1
			records = append(records, rec)
		}
		logger.Debug().Int("page", pageNum).Int("records", len(p.Data)).Msg("fetched inspection page")

		if p.NextPage == nil {
			break
		}
		if *p.NextPage <= pageNum {
			return nil, errors.NewAPIError(Name, 0, fmt.Sprintf("next_page %d does not advance past %d", *p.NextPage, pageNum))
		}
		pageNum = *p.NextPage
	}

	logger.Info().Int("records", len(records)).Msg("fetched inspections from api")
	return records, nil
}

func (s *Source) fetchPage(ctx context.Context, pageNum int) (*page, error) {
	u := *s.endpoint
	q := u.Query()
	q.Set("page", strconv.Itoa(pageNum))
	q.Set("per_page", strconv.Itoa(s.pageSize))
	u.RawQuery = q.Encode()

	resp, err := s.client.Get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	var p page
	if err := transport.DecodeResponse(resp, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// page keeps items raw so one malformed record cannot fail its neighbours.
type page struct {
	Data     []json.RawMessage `json:"data"`
	NextPage *int              `json:"next_page"`
}

// submission is the wire shape of one API record. Ids and coordinates
// arrive as either JSON strings or numbers.
type submission struct {
	ID          flexString `json:"id"`
	Category    string     `json:"category"`
	SubmittedAt string     `json:"submitted_at"`
	Inspector   string     `json:"inspector"`
	Branch      string     `json:"branch"`
	Lat         flexFloat  `json:"lat"`
	Lon         flexFloat  `json:"lon"`
	MapLink     string     `json:"map_link"`
	BranchHint  string     `json:"branch_hint"`
}

func (s submission) record() inspections.RawRecord {
	return inspections.RawRecord{
		SubmissionID: string(s.ID),
		Category:     s.Category,
		SubmittedAt:  s.SubmittedAt,
		Inspector:    s.Inspector,
		BranchLabel:  s.Branch,
		Latitude:     s.Lat.value,
		Longitude:    s.Lon.value,
		MapLink:      s.MapLink,
		BranchHint:   s.BranchHint,
	}
}

type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type flexFloat struct {
	value *float64
}

// UnmarshalJSON never fails: a coordinate of any unreadable shape
// (true, {}, "n/a") is treated as absent.
func (f *flexFloat) UnmarshalJSON(b []byte) error {
	f.value = nil
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return nil
	}
	text := strings.TrimSpace(string(s))
	if text == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		f.value = &v
	}
	return nil
}
