package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/centrosedu/centros/engine/centers"
	"github.com/centrosedu/centros/engine/pagecache"
	"github.com/centrosedu/centros/engine/query"
	"github.com/centrosedu/centros/engine/record"
	"github.com/centrosedu/centros/pkg/logger"
)

// Mode selects how pages are produced.
type Mode string

const (
	// ModeServer asks the backend for each page and caches pages by key.
	ModeServer Mode = "server"
	// ModeClient loads the whole dataset once and pages it in memory.
	ModeClient Mode = "client"
)

const (
	DefaultRowsPerPage     = 10
	DefaultPrefetchDepth   = 2
	DefaultFullDatasetSize = 100
)

// Fetcher is the remote collaborator the controller depends on.
type Fetcher interface {
	FetchCenters(ctx context.Context, q centers.Query) (*centers.Page, error)
	FetchCenterTypes(ctx context.Context) ([]string, error)
}

// Renderer receives everything the user sees.
type Renderer interface {
	Render(records []record.Record, schema *record.Schema)
	RenderError(message string)
	SetLoadingVisible(visible bool)
	RenderPagination(page int, hasPrev, hasNext bool)
}

// Form is one submission of the search form.
type Form struct {
	// Query carries the server-side filters; its page fields are ignored.
	Query centers.Query
	// Criteria are exact-match filters applied in memory on record fields.
	Criteria    query.Criteria
	Sort        query.Spec
	RowsPerPage int
}

type Config struct {
	Mode            Mode
	RowsPerPage     int
	PrefetchDepth   int
	FullDatasetSize int
	NumericFields   []string
}

func (c Config) withDefaults() Config {
	if c.Mode != ModeClient {
		c.Mode = ModeServer
	}
	if c.RowsPerPage <= 0 {
		c.RowsPerPage = DefaultRowsPerPage
	}
	if c.PrefetchDepth < 0 {
		c.PrefetchDepth = 0
	}
	if c.FullDatasetSize <= 0 {
		c.FullDatasetSize = DefaultFullDatasetSize
	}
	return c
}

// State is a snapshot of the controller's navigation state.
type State struct {
	Form       Form
	Page       int
	HasNext    bool
	Generation uint64
	Schema     *record.Schema
}

// Controller turns form submissions and navigation into rendered pages,
// going through the page cache.
type Controller struct {
	fetcher  Fetcher
	renderer Renderer
	cache    *pagecache.Cache[*centers.Page]
	store    *query.Store
	numeric  query.NumericFields
	cfg      Config

	mu    sync.Mutex
	state State

	// storeMu serializes client-mode runs over the shared store.
	storeMu     sync.Mutex
	storeSource *centers.Page

	bg sync.WaitGroup
}

func New(
	fetcher Fetcher,
	renderer Renderer,
	cache *pagecache.Cache[*centers.Page],
	cfg Config,
) (*Controller, error) {
	if fetcher == nil {
		return nil, errors.New("controller: fetcher is required")
	}
	if renderer == nil {
		return nil, errors.New("controller: renderer is required")
	}
	if cache == nil {
		return nil, errors.New("controller: page cache is required")
	}
	cfg = cfg.withDefaults()
	numeric := query.NewNumericFields(cfg.NumericFields...)
	return &Controller{
		fetcher:  fetcher,
		renderer: renderer,
		cache:    cache,
		store:    query.NewStore(numeric),
		numeric:  numeric,
		cfg:      cfg,
		state: State{
			Form: Form{RowsPerPage: cfg.RowsPerPage, Criteria: query.Criteria{}},
			Page: 1,
		},
	}, nil
}

func (c *Controller) Mode() Mode {
	return c.cfg.Mode
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Schema is the schema of the most recently rendered result set.
func (c *Controller) Schema() *record.Schema {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Schema
}

// Store exposes the in-memory dataset used in client mode.
func (c *Controller) Store() *query.Store {
	return c.store
}

func (c *Controller) Cache() *pagecache.Cache[*centers.Page] {
	return c.cache
}

// Submit applies a new form and shows its first page. Cached pages of other
// queries stay valid under their own keys.
func (c *Controller) Submit(ctx context.Context, form Form) {
	c.Open(ctx, form, 1)
}

// Open applies a new form and shows the given page.
func (c *Controller) Open(ctx context.Context, form Form, page int) {
	if form.RowsPerPage <= 0 {
		form.RowsPerPage = c.cfg.RowsPerPage
	}
	form.Criteria = form.Criteria.Active()
	c.mu.Lock()
	c.state.Form = form
	c.state.Page = max(page, 1)
	c.mu.Unlock()
	c.run(ctx)
}

// Next moves one page forward. In client mode it stops at the last page.
func (c *Controller) Next(ctx context.Context) {
	c.mu.Lock()
	if c.cfg.Mode == ModeClient && !c.state.HasNext {
		c.mu.Unlock()
		return
	}
	c.state.Page++
	c.mu.Unlock()
	c.run(ctx)
}

// Previous moves one page back; it does nothing on the first page.
func (c *Controller) Previous(ctx context.Context) {
	c.mu.Lock()
	if c.state.Page <= 1 {
		c.mu.Unlock()
		return
	}
	c.state.Page--
	c.mu.Unlock()
	c.run(ctx)
}

// GoTo jumps to page; pages below 1 are ignored.
func (c *Controller) GoTo(ctx context.Context, page int) {
	if page < 1 {
		return
	}
	c.mu.Lock()
	c.state.Page = page
	c.mu.Unlock()
	c.run(ctx)
}

// Refresh re-runs the current page.
func (c *Controller) Refresh(ctx context.Context) {
	c.run(ctx)
}

// Reload drops every cached page and the in-memory dataset, then fetches the
// current page again.
func (c *Controller) Reload(ctx context.Context) {
	c.cache.Clear()
	c.storeMu.Lock()
	c.storeSource = nil
	c.storeMu.Unlock()
	c.run(ctx)
}

// SetSort changes the sort and returns to the first page.
func (c *Controller) SetSort(ctx context.Context, spec query.Spec) {
	c.mu.Lock()
	c.state.Form.Sort = spec
	c.state.Page = 1
	c.mu.Unlock()
	c.run(ctx)
}

// ToggleSort sorts by field, flipping direction when it is already active.
func (c *Controller) ToggleSort(ctx context.Context, field string) {
	c.mu.Lock()
	spec := c.state.Form.Sort.Toggle(field)
	c.mu.Unlock()
	c.SetSort(ctx, spec)
}

// LoadCenterTypes returns the center types for the type filter, or an empty
// list when they cannot be fetched.
func (c *Controller) LoadCenterTypes(ctx context.Context) []string {
	types, err := c.fetcher.FetchCenterTypes(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to load center types", "error", err)
		return []string{}
	}
	return types
}

// Wait blocks until background prefetches have settled.
func (c *Controller) Wait() {
	c.bg.Wait()
}

// request is the immutable input of one run.
type request struct {
	generation uint64
	page       int
	form       Form
}

func (c *Controller) begin() request {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Generation++
	return request{generation: c.state.Generation, page: c.state.Page, form: c.state.Form}
}

func (c *Controller) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Generation == gen
}

func (c *Controller) run(ctx context.Context) {
	req := c.begin()
	log := logger.FromContext(ctx).With("page", req.page, "generation", req.generation)
	c.renderer.SetLoadingVisible(true)
	defer func() {
		if c.isCurrent(req.generation) {
			c.renderer.SetLoadingVisible(false)
		}
	}()
	switch c.cfg.Mode {
	case ModeClient:
		c.runClient(ctx, log, req)
	default:
		c.runServer(ctx, log, req)
	}
}

func (c *Controller) signature(form Form, size int) string {
	return pagecache.Sign(form.Query.Filters(), form.Sort.String(), size)
}

func (c *Controller) pageFetcher(form Form, size int) pagecache.Fetcher[*centers.Page] {
	return func(ctx context.Context, key pagecache.Key) (*centers.Page, error) {
		q := form.Query
		q.Page = key.Page
		q.RowsPerPage = size
		return c.fetcher.FetchCenters(ctx, q)
	}
}

func (c *Controller) runServer(ctx context.Context, log logger.Logger, req request) {
	size := req.form.RowsPerPage
	key := pagecache.Key{Page: req.page, Signature: c.signature(req.form, size)}
	fetch := c.pageFetcher(req.form, size)

	page, fromCache, err := c.cache.Load(ctx, key, fetch)
	if err != nil {
		log.Error("Failed to fetch centers page", "error", err)
		c.deliverFailure(req, err, true)
		return
	}
	log.Debug("Centers page ready", "cached", fromCache, "rows", page.Len())
	records := query.ApplySort(query.ApplyFilters(page.Records, req.form.Criteria), req.form.Sort, c.numeric)
	c.deliver(log, req, records, page.Schema, true)

	if !fromCache && c.cfg.PrefetchDepth > 0 {
		c.prefetch(ctx, key, fetch)
	}
}

func (c *Controller) prefetch(ctx context.Context, from pagecache.Key, fetch pagecache.Fetcher[*centers.Page]) {
	bgCtx := context.WithoutCancel(ctx)
	keys := from.Next(c.cfg.PrefetchDepth)
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		c.cache.Prefetch(bgCtx, keys, fetch)
	}()
}

func (c *Controller) runClient(ctx context.Context, log logger.Logger, req request) {
	size := c.cfg.FullDatasetSize
	dataForm := Form{Query: req.form.Query}
	key := pagecache.Key{Page: 1, Signature: c.signature(dataForm, size)}

	dataset, fromCache, err := c.cache.Load(ctx, key, c.pageFetcher(dataForm, size))
	if err != nil {
		log.Error("Failed to fetch centers dataset", "error", err)
		c.deliverFailure(req, err, false)
		return
	}
	c.storeMu.Lock()
	if c.storeSource != dataset {
		c.store.Load(dataset.Records, dataset.Schema)
		c.storeSource = dataset
	}
	c.store.SetFilters(req.form.Criteria)
	c.store.SetSort(req.form.Sort)
	records, hasNext := c.store.Page(req.page, req.form.RowsPerPage)
	matched := c.store.Len()
	c.storeMu.Unlock()
	log.Debug("Centers dataset ready", "cached", fromCache, "matched", matched)
	c.deliver(log, req, records, dataset.Schema, hasNext)
}

func (c *Controller) deliver(log logger.Logger, req request, records []record.Record, schema *record.Schema, hasNext bool) {
	c.mu.Lock()
	if c.state.Generation != req.generation {
		c.mu.Unlock()
		log.Debug("Discarding superseded result")
		return
	}
	c.state.Schema = schema
	c.state.HasNext = hasNext
	c.mu.Unlock()
	c.renderer.Render(records, schema)
	c.renderer.RenderPagination(req.page, req.page > 1, hasNext)
}

// deliverFailure degrades any fetch failure to an empty result plus a message.
func (c *Controller) deliverFailure(req request, err error, hasNext bool) {
	c.mu.Lock()
	if c.state.Generation != req.generation {
		c.mu.Unlock()
		return
	}
	c.state.HasNext = hasNext
	schema := c.state.Schema
	c.mu.Unlock()
	c.renderer.Render([]record.Record{}, schema)
	c.renderer.RenderError(failureMessage(err))
	c.renderer.RenderPagination(req.page, req.page > 1, hasNext)
}

func failureMessage(err error) string {
	var apiErr *centers.APIError
	switch {
	case errors.As(err, &apiErr):
		return fmt.Sprintf("The server could not load the centers (status %d).", apiErr.Status)
	case errors.Is(err, centers.ErrMalformed):
		return "The server returned an unexpected response."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The request was canceled."
	default:
		return "Could not reach the server. Please try again later."
	}
}
