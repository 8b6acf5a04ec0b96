package purchase

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

// Outcome is how a checkout ended. Callers refresh the course list whatever the outcome.
type Outcome string

const (
	OutcomePaid   Outcome = "paid"
	OutcomeFailed Outcome = "failed"
	OutcomeClosed Outcome = "closed"
)

const DefaultPollInterval = 500 * time.Millisecond

// Status values carried by payment messages. Anything else is ignored.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Message is a payment notification about the checkout of a course by a user.
type Message struct {
	PaymentStatus string `json:"paymentStatus" validate:"notblank"`
	CourseID      string `json:"courseId" validate:"notblank"`
	UserID        string `json:"userId" validate:"notblank"`
}

type (
	// Window is an opened payment page.
	Window interface {
		Closed() bool
	}

	// Opener shows the payment page at url to the user.
	Opener interface {
		Open(url string) (Window, error)
	}

	// Events delivers payment messages until ctx is done.
	Events interface {
		Subscribe(ctx context.Context) (<-chan Message, error)
	}

	// QRCreator asks the backend for a payment page.
	QRCreator interface {
		CreateQR(ctx context.Context, courseID, userID string) (string, error)
	}
)

type Flow struct {
	qr       QRCreator
	opener   Opener
	events   Events
	interval time.Duration
	logger   core.Logger
	inFlight core.InFlightSet
}

func NewFlow(qr QRCreator, opener Opener, events Events, conf *core.Config, logger core.Logger) *Flow {
	interval := conf.Payment.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Flow{
		qr:       qr,
		opener:   opener,
		events:   events,
		interval: interval,
		logger:   logger,
	}
}

// Checkout opens the payment page of a course for usr and waits until the payment succeeds,
// fails, or the user closes the page. Only one checkout per user may run at a time.
func (fl *Flow) Checkout(ctx context.Context, courseID string, usr core.Profile) (Outcome, error) {
	return fl.CheckoutWith(ctx, fl.opener, courseID, usr)
}

// CheckoutWith is Checkout showing the payment page through opener.
func (fl *Flow) CheckoutWith(ctx context.Context, opener Opener, courseID string, usr core.Profile) (Outcome, error) {
	if usr.ID == "" {
		return "", core.ErrNotAuthenticated
	}
	if !fl.inFlight.Begin(usr.ID) {
		return "", core.ErrInFlight
	}
	defer fl.inFlight.End(usr.ID)

	// subscribe before opening the page so that no notification is missed
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var msgs <-chan Message
	if fl.events != nil {
		var err error
		if msgs, err = fl.events.Subscribe(ctx); err != nil {
			return "", errors.Wrap(err, "subscribing to payment events")
		}
	}

	url, err := fl.qr.CreateQR(ctx, courseID, usr.ID)
	if err != nil {
		return "", errors.Wrap(err, "creating payment QR")
	}
	win, err := opener.Open(url)
	if err != nil {
		return "", errors.Wrap(err, "opening payment page")
	}

	ticker := time.NewTicker(fl.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				msgs = nil // keep polling the window
				continue
			}
			if !fl.concerns(msg, courseID, usr.ID) {
				continue
			}
			switch msg.PaymentStatus {
			case StatusSuccess:
				fl.logger.Info("course purchased", usr, map[string]interface{}{"courseId": courseID})
				return OutcomePaid, nil
			case StatusFailed:
				return OutcomeFailed, nil
			}
		case <-ticker.C:
			if win.Closed() {
				return OutcomeClosed, nil
			}
		}
	}
}

// concerns reports whether msg is about this checkout. Messages without ids concern no one.
func (fl *Flow) concerns(msg Message, courseID, userID string) bool {
	return msg.CourseID != "" && msg.UserID != "" && msg.CourseID == courseID && msg.UserID == userID
}
