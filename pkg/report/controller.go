package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harvestsmart/harvestsmart/pkg/store"
)

// State is the lifecycle position of one day's report.
type State int

const (
	StateEmpty State = iota
	StateLoaded
	StateSending
	StateSent
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StateSending:
		return "sending"
	case StateSent:
		return "sent"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// UnknownFarmer is sent when no farmer is logged in.
const UnknownFarmer = "unknown"

// Renderer turns a report into a portable document.
type Renderer interface {
	Render(ctx context.Context, rep *DailyReport) ([]byte, error)
}

// Submission is everything sent to the collection center for one day.
type Submission struct {
	Date     string
	FarmerID string
	Report   *DailyReport
	Document []byte // rendered PDF, may be empty
}

// Ack is the collection center's answer to a Submission.
type Ack struct {
	Success   bool
	Message   string
	ReceiptID string
}

// Submitter transmits a Submission. A transport failure is an error; a refusal is Ack.Success == false.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (*Ack, error)
}

// Identity resolves the farmer the report is filed under. An empty ID means nobody is logged in.
type Identity interface {
	FarmerID(ctx context.Context) (string, error)
}

// ErrorReporter receives errors that are swallowed rather than returned.
type ErrorReporter interface {
	CaptureError(ctx context.Context, err error, component string)
}

// ControllerConfig holds the collaborators of a Controller.
type ControllerConfig struct {
	Store     store.Store // required
	Renderer  Renderer    // required
	Submitter Submitter   // required
	Identity  Identity    // optional; nil files every report under UnknownFarmer
	Reporter  ErrorReporter
	Location  *time.Location
	Now       func() time.Time
	Log       Logger
	Observer  Observer
	// DisplayLimit caps detections returned by Load; 0 = DefaultDisplayLimit, < 0 = no cap.
	DisplayLimit int
}

// Today is a loaded report with its sent-flag.
type Today struct {
	Report *DailyReport
	Sent   bool
}

// SubmitResult describes a successful Submit.
type SubmitResult struct {
	Date        string
	AlreadySent bool
	Ack         *Ack
}

// Controller loads daily reports and submits each day at most once.
type Controller struct {
	store     store.Store
	renderer  Renderer
	submitter Submitter
	identity  Identity
	reporter  ErrorReporter
	loc       *time.Location
	now       func() time.Time
	log       Logger
	obs       Observer
	limit     int

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewController(cfg ControllerConfig) (*Controller, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("controller: nil store")
	case cfg.Renderer == nil:
		return nil, errors.New("controller: nil renderer")
	case cfg.Submitter == nil:
		return nil, errors.New("controller: nil submitter")
	}
	c := &Controller{
		store:     cfg.Store,
		renderer:  cfg.Renderer,
		submitter: cfg.Submitter,
		identity:  cfg.Identity,
		reporter:  cfg.Reporter,
		loc:       cfg.Location,
		now:       cfg.Now,
		log:       cfg.Log,
		obs:       cfg.Observer,
		limit:     cfg.DisplayLimit,
		inFlight:  make(map[string]bool),
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = nopLogger{}
	}
	if c.obs == nil {
		c.obs = nopObserver{}
	}
	if c.limit == 0 {
		c.limit = DefaultDisplayLimit
	}
	return c, nil
}

// Today returns the current date key.
func (c *Controller) Today() string {
	return DateKey(c.now(), c.loc)
}

// LoadToday is Load for the current date.
func (c *Controller) LoadToday(ctx context.Context) *Today {
	return c.Load(ctx, c.Today())
}

// Load returns the report for date or nil when there is none, with Detections
// cut to the display limit. Read failures are reported and also yield nil.
func (c *Controller) Load(ctx context.Context, date string) *Today {
	t := c.LoadAll(ctx, date)
	if t == nil {
		return nil
	}
	t.Report = t.Report.Tail(c.limit)
	return t
}

// LoadAll is Load without the display limit, for exports and metrics.
func (c *Controller) LoadAll(ctx context.Context, date string) *Today {
	rep, sent, err := c.read(ctx, date)
	if err != nil {
		c.log.Errorf("Failed to load report %s: %v", date, err)
		c.capture(ctx, err, "report-load")
		return nil
	}
	if rep == nil {
		return nil
	}
	return &Today{Report: rep, Sent: sent}
}

// Dates lists every date with a stored report, oldest first.
func (c *Controller) Dates(ctx context.Context) ([]string, error) {
	keys, err := c.store.Keys(ctx, reportPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return DatesFromKeys(keys), nil
}

// State reports where date stands in the submission lifecycle.
func (c *Controller) State(ctx context.Context, date string) State {
	c.mu.Lock()
	sending := c.inFlight[date]
	c.mu.Unlock()
	if sending {
		return StateSending
	}
	t := c.Load(ctx, date)
	switch {
	case t == nil:
		return StateEmpty
	case t.Sent:
		return StateSent
	default:
		return StateLoaded
	}
}

func (c *Controller) read(ctx context.Context, date string) (*DailyReport, bool, error) {
	raw, ok, err := c.store.Get(ctx, ReportKey(date))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return nil, false, nil
	}
	rep, err := decodeReport(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	sent, err := c.sent(ctx, date)
	if err != nil {
		return nil, false, err
	}
	return rep, sent, nil
}

func (c *Controller) sent(ctx context.Context, date string) (bool, error) {
	v, ok, err := c.store.Get(ctx, SentKey(date))
	if err != nil {
		return false, fmt.Errorf("%w: read sent-flag: %v", ErrPersistence, err)
	}
	return ok && v == sentValue, nil
}

// Submit renders, transmits and marks rep's date as sent. A date already
// marked sent returns success without transmitting. The flag is only written
// after the collection center explicitly acknowledges the submission.
func (c *Controller) Submit(ctx context.Context, rep *DailyReport) (*SubmitResult, error) {
	if rep.Empty() {
		return nil, ErrEmptyReport
	}
	date := rep.Date
	if !c.begin(date) {
		c.obs.ObserveSubmit(date, OutcomeRejected)
		return nil, ErrSubmissionInProgress
	}
	defer c.end(date)

	res, err := c.submit(ctx, rep)
	switch {
	case err != nil:
		c.obs.ObserveSubmit(date, OutcomeFailed)
		c.log.Errorf("Submitting report %s failed: %v", date, err)
		c.capture(ctx, err, "report-submit")
	case res.AlreadySent:
		c.obs.ObserveSubmit(date, OutcomeAlreadySent)
	default:
		c.obs.ObserveSubmit(date, OutcomeSent)
		c.log.Infof("Report %s sent to collection center", date)
	}
	return res, err
}

func (c *Controller) submit(ctx context.Context, given *DailyReport) (*SubmitResult, error) {
	date := given.Date
	sent, err := c.sent(ctx, date)
	if err != nil {
		return nil, err
	}
	if sent {
		c.log.Debugf("Report %s already sent, skipping", date)
		return &SubmitResult{Date: date, AlreadySent: true}, nil
	}

	// The caller's copy may have been cut by Tail.
	rep := given
	stored, _, err := c.read(ctx, date)
	if err != nil {
		return nil, err
	}
	if !stored.Empty() {
		rep = stored
	}

	doc, err := c.renderer.Render(ctx, rep)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}

	farmer := c.farmerID(ctx)
	ack, err := c.submitter.Submit(ctx, Submission{
		Date:     date,
		FarmerID: farmer,
		Report:   rep,
		Document: doc,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransmission, err)
	}
	if ack == nil || !ack.Success {
		msg := ""
		if ack != nil {
			msg = ack.Message
		}
		return nil, fmt.Errorf("%w: %s", ErrNotAcknowledged, msg)
	}

	// Acknowledged: the flag is written even if ctx is done.
	if err := c.store.Set(context.WithoutCancel(ctx), SentKey(date), sentValue); err != nil {
		return nil, fmt.Errorf("%w: record sent-flag: %v", ErrPersistence, err)
	}
	return &SubmitResult{Date: date, Ack: ack}, nil
}

func (c *Controller) farmerID(ctx context.Context) string {
	if c.identity == nil {
		return UnknownFarmer
	}
	id, err := c.identity.FarmerID(ctx)
	if err != nil {
		c.log.Warnf("Could not resolve farmer ID, submitting as %q: %v", UnknownFarmer, err)
		return UnknownFarmer
	}
	if id == "" {
		return UnknownFarmer
	}
	return id
}

func (c *Controller) begin(date string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[date] {
		return false
	}
	c.inFlight[date] = true
	return true
}

func (c *Controller) end(date string) {
	c.mu.Lock()
	delete(c.inFlight, date)
	c.mu.Unlock()
}

func (c *Controller) capture(ctx context.Context, err error, component string) {
	if c.reporter != nil {
		c.reporter.CaptureError(ctx, err, component)
	}
}
