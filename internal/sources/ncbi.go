package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/rescript/internal/domain"
	"github.com/bft-labs/rescript/internal/ports"
)

// DefaultEntrezURL is the NCBI E-utilities endpoint.
const DefaultEntrezURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

const (
	seqBatchSize       = 5000
	accessionBatchSize = 200
	taxBatchSize       = 200

	// maxJobsWithoutKey is the NCBI request rate allowed without an API key.
	maxJobsWithoutKey = 3
)

var (
	// NCBIRanks are the ranks a label can be built from.
	NCBIRanks = []string{
		"domain", "superkingdom", "kingdom", "subkingdom",
		"superphylum", "phylum", "subphylum",
		"superclass", "class", "subclass", "infraclass",
		"superorder", "order", "suborder",
		"superfamily", "family", "subfamily", "tribe",
		"genus", "subgenus", "species", "subspecies",
	}

	DefaultNCBIRanks = []string{"kingdom", "phylum", "class", "order", "family", "genus", "species"}
)

// NCBIParams selects GenBank records.
type NCBIParams struct {
	// Query is an Entrez nuccore query. Exactly one of Query and
	// AccessionIDs is required.
	Query        string
	AccessionIDs []string

	Ranks           []string
	RankPropagation bool

	Jobs        int
	APIKey      string
	EntrezDelay time.Duration
}

// DefaultNCBIParams returns the default ranks and pacing.
func DefaultNCBIParams() NCBIParams {
	return NCBIParams{
		Ranks:           DefaultNCBIRanks,
		RankPropagation: true,
		Jobs:            1,
		EntrezDelay:     334 * time.Millisecond,
	}
}

// Validate checks the parameters.
func (p NCBIParams) Validate() error {
	if (p.Query == "") == (len(p.AccessionIDs) == 0) {
		return fmt.Errorf("%w: exactly one of query or accession-ids is required", domain.ErrInvalidParameter)
	}
	if p.EntrezDelay < 0 {
		return fmt.Errorf("%w: entrez-delay must not be negative", domain.ErrInvalidParameter)
	}
	return checkRanks(p.Ranks, NCBIRanks)
}

// NCBI downloads GenBank sequences and their NCBI taxonomy lineages.
type NCBI struct {
	fetcher ports.Fetcher
	logger  ports.Logger
	baseURL string
}

// NewNCBI creates an NCBI client. An empty baseURL uses DefaultEntrezURL.
func NewNCBI(fetcher ports.Fetcher, logger ports.Logger, baseURL string) *NCBI {
	if baseURL == "" {
		baseURL = DefaultEntrezURL
	}
	return &NCBI{fetcher: fetcher, logger: logger, baseURL: trimSlash(baseURL)}
}

type esearchResponse struct {
	Result struct {
		Count    string `json:"count"`
		QueryKey string `json:"querykey"`
		WebEnv   string `json:"webenv"`
	} `json:"esearchresult"`
}

type tseqSet struct {
	Seqs []tseq `xml:"TSeq"`
}

type tseq struct {
	AccVer   string `xml:"TSeq_accver"`
	TaxID    string `xml:"TSeq_taxid"`
	Sequence string `xml:"TSeq_sequence"`
}

type taxaSet struct {
	Taxa []taxonRecord `xml:"Taxon"`
}

type taxonRecord struct {
	TaxID          string        `xml:"TaxId"`
	ScientificName string        `xml:"ScientificName"`
	Rank           string        `xml:"Rank"`
	AkaTaxIDs      []string      `xml:"AkaTaxIds>TaxId"`
	Lineage        []taxonRecord `xml:"LineageEx>Taxon"`
}

// ncbiSession carries per-call state shared by concurrent batches.
type ncbiSession struct {
	*NCBI
	p NCBIParams
}

// Get resolves p to sequences and builds their taxonomy.
func (n *NCBI) Get(ctx context.Context, p NCBIParams) (Dataset, error) {
	if err := p.Validate(); err != nil {
		return Dataset{}, err
	}
	if p.Jobs < 1 {
		p.Jobs = 1
	}
	if p.APIKey == "" && p.Jobs > maxJobsWithoutKey {
		n.logger.Warn("n-jobs capped without an API key", ports.Int("requested", p.Jobs), ports.Int("jobs", maxJobsWithoutKey))
		p.Jobs = maxJobsWithoutKey
	}
	s := &ncbiSession{NCBI: n, p: p}
	// Every Entrez attempt, retries included, is spaced by EntrezDelay.
	ctx = ports.WithRequestGate(ctx, newPacer(p.EntrezDelay))

	urls, err := s.sequenceURLs(ctx)
	if err != nil {
		return Dataset{}, err
	}
	records, err := s.fetchSequences(ctx, urls)
	if err != nil {
		return Dataset{}, err
	}
	if len(records) == 0 {
		return Dataset{}, fmt.Errorf("%w: no sequences matched", domain.ErrNoRecords)
	}
	n.logger.Info("downloaded NCBI sequences", ports.Int("sequences", len(records)))

	lineages, err := s.fetchLineages(ctx, records)
	if err != nil {
		return Dataset{}, err
	}

	ds := Dataset{Taxonomy: domain.NewTaxonomy()}
	missing := 0
	for _, r := range records {
		if _, dup := ds.Taxonomy.Get(r.AccVer); dup {
			continue
		}
		names, ok := lineages[r.TaxID]
		if !ok {
			missing++
			continue
		}
		ds.Sequences = append(ds.Sequences, domain.Sequence{ID: r.AccVer, Seq: strings.ToUpper(r.Sequence)})
		ds.Taxonomy.Set(r.AccVer, buildLabel(names, p.Ranks, p.RankPropagation))
	}
	if missing > 0 {
		n.logger.Warn("dropped sequences without taxonomy", ports.Int("count", missing))
	}
	if len(ds.Sequences) == 0 {
		return Dataset{}, fmt.Errorf("%w: no sequences with taxonomy", domain.ErrNoRecords)
	}
	return ds, nil
}

func (s *ncbiSession) url(tool string, q url.Values) string {
	if s.p.APIKey != "" {
		q.Set("api_key", s.p.APIKey)
	}
	return s.baseURL + "/" + tool + "?" + q.Encode()
}

// sequenceURLs returns one efetch URL per batch of sequences.
func (s *ncbiSession) sequenceURLs(ctx context.Context) ([]string, error) {
	var urls []string
	if len(s.p.AccessionIDs) > 0 {
		for _, batch := range chunk(s.p.AccessionIDs, accessionBatchSize) {
			urls = append(urls, s.url("efetch.fcgi", url.Values{
				"db":      {"nuccore"},
				"id":      {strings.Join(batch, ",")},
				"rettype": {"fasta"},
				"retmode": {"xml"},
			}))
		}
		return urls, nil
	}

	var es esearchResponse
	err := s.fetcher.GetJSON(ctx, s.url("esearch.fcgi", url.Values{
		"db":         {"nuccore"},
		"term":       {s.p.Query},
		"usehistory": {"y"},
		"retmax":     {"0"},
		"retmode":    {"json"},
	}), &es)
	if err != nil {
		return nil, fmt.Errorf("esearch: %w", err)
	}
	count, err := strconv.Atoi(es.Result.Count)
	if err != nil {
		return nil, fmt.Errorf("esearch: bad count %q", es.Result.Count)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: no sequences matched query %q", domain.ErrNoRecords, s.p.Query)
	}
	s.logger.Info("esearch matched", ports.Int("count", count))

	for start := 0; start < count; start += seqBatchSize {
		urls = append(urls, s.url("efetch.fcgi", url.Values{
			"db":        {"nuccore"},
			"query_key": {es.Result.QueryKey},
			"WebEnv":    {es.Result.WebEnv},
			"retstart":  {strconv.Itoa(start)},
			"retmax":    {strconv.Itoa(seqBatchSize)},
			"rettype":   {"fasta"},
			"retmode":   {"xml"},
		}))
	}
	return urls, nil
}

func (s *ncbiSession) fetchSequences(ctx context.Context, urls []string) ([]tseq, error) {
	batches := make([][]tseq, len(urls))
	err := s.eachBatch(ctx, urls, func(i int, body []byte) error {
		var set tseqSet
		if err := xml.Unmarshal(body, &set); err != nil {
			return fmt.Errorf("efetch nuccore: %w", err)
		}
		batches[i] = set.Seqs
		return nil
	})
	if err != nil {
		return nil, err
	}
	var out []tseq
	for _, b := range batches {
		out = append(out, b...)
	}
	return out, nil
}

// fetchLineages returns rank -> name maps keyed by every taxid the records
// reference, including merged aliases.
func (s *ncbiSession) fetchLineages(ctx context.Context, records []tseq) (map[string]map[string]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range records {
		if r.TaxID != "" && !seen[r.TaxID] {
			seen[r.TaxID] = true
			ids = append(ids, r.TaxID)
		}
	}

	var urls []string
	for _, batch := range chunk(ids, taxBatchSize) {
		urls = append(urls, s.url("efetch.fcgi", url.Values{
			"db":      {"taxonomy"},
			"id":      {strings.Join(batch, ",")},
			"retmode": {"xml"},
		}))
	}

	var mu sync.Mutex
	out := make(map[string]map[string]string, len(ids))
	err := s.eachBatch(ctx, urls, func(_ int, body []byte) error {
		var set taxaSet
		if err := xml.Unmarshal(body, &set); err != nil {
			return fmt.Errorf("efetch taxonomy: %w", err)
		}
		mu.Lock()
		defer mu.Unlock()
		for _, t := range set.Taxa {
			names := lineageNames(t)
			out[t.TaxID] = names
			for _, aka := range t.AkaTaxIDs {
				out[aka] = names
			}
		}
		return nil
	})
	return out, err
}

// lineageNames maps ranks to names for a taxon and its ancestors. When the
// lineage has no kingdom the superkingdom or domain stands in for it.
func lineageNames(t taxonRecord) map[string]string {
	names := make(map[string]string, len(t.Lineage)+1)
	for _, l := range t.Lineage {
		names[l.Rank] = l.ScientificName
	}
	names[t.Rank] = t.ScientificName
	if names["kingdom"] == "" {
		if v := names["superkingdom"]; v != "" {
			names["kingdom"] = v
		} else if v := names["domain"]; v != "" {
			names["kingdom"] = v
		}
	}
	delete(names, "no rank")
	delete(names, "clade")
	return names
}

// eachBatch fetches urls on up to Jobs goroutines. Requests are paced by
// the gate on ctx.
func (s *ncbiSession) eachBatch(ctx context.Context, urls []string, handle func(i int, body []byte) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.p.Jobs)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			s.logger.Debug("efetch batch", ports.Int("batch", i+1), ports.Int("batches", len(urls)))
			body, err := s.fetcher.GetBody(ctx, u)
			if err != nil {
				return err
			}
			return handle(i, body)
		})
	}
	return g.Wait()
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > 0 {
		n := min(size, len(ids))
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}

// pacer spaces requests at least delay apart across goroutines.
type pacer struct {
	mu    sync.Mutex
	delay time.Duration
	next  time.Time
}

func newPacer(delay time.Duration) *pacer {
	return &pacer{delay: delay}
}

// Wait blocks until the next request slot.
func (p *pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	at := p.next
	if at.Before(now) {
		at = now
	}
	p.next = at.Add(p.delay)
	p.mu.Unlock()

	d := time.Until(at)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
