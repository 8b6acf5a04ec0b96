package echoapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/purchase"
	"github.com/trezcool/elimu/services/events"
)

// NotifySecretHeader carries the secret shared with the payment provider.
const NotifySecretHeader = "X-Payment-Secret"

// checkoutTimeout bounds how long a payment page may stay open.
const checkoutTimeout = 30 * time.Minute

const (
	checkoutPending = "pending"
	checkoutError   = "error"
)

// remoteWindow is a payment page shown by the client; the client reports its closing.
type remoteWindow struct {
	closed int32
}

func (w *remoteWindow) Closed() bool { return atomic.LoadInt32(&w.closed) == 1 }
func (w *remoteWindow) close()       { atomic.StoreInt32(&w.closed, 1) }

// remoteOpener hands the payment URL over to the request that started the checkout.
type remoteOpener struct {
	win  *remoteWindow
	urls chan string
}

func (o remoteOpener) Open(url string) (purchase.Window, error) {
	o.urls <- url
	return o.win, nil
}

// checkout is the state of the latest checkout of a user.
type checkout struct {
	CourseID string `json:"courseId"`
	URL      string `json:"url,omitempty"`
	Status   string `json:"status"` // pending, error or a purchase.Outcome
	Error    string `json:"error,omitempty"`

	win *remoteWindow
}

// checkouts tracks the checkouts of every user and runs them in the background.
type checkouts struct {
	mu     sync.Mutex
	byUser map[string]*checkout
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func newCheckouts() *checkouts {
	ctx, cancel := context.WithCancel(context.Background())
	return &checkouts{
		byUser: make(map[string]*checkout),
		ctx:    ctx,
		cancel: cancel,
	}
}

// begin registers a pending checkout for userID, unless one is already running.
func (cs *checkouts) begin(userID, courseID string) (*checkout, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if co, ok := cs.byUser[userID]; ok && co.Status == checkoutPending {
		return nil, core.ErrInFlight
	}
	co := &checkout{CourseID: courseID, Status: checkoutPending, win: new(remoteWindow)}
	cs.byUser[userID] = co
	return co, nil
}

func (cs *checkouts) get(userID string) (checkout, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	co, ok := cs.byUser[userID]
	if !ok {
		return checkout{}, false
	}
	return *co, true
}

func (cs *checkouts) update(co *checkout, fn func(*checkout)) {
	cs.mu.Lock()
	fn(co)
	cs.mu.Unlock()
}

// stop cancels the running checkouts and waits for them to return.
func (cs *checkouts) stop() {
	cs.cancel()
	cs.wg.Wait()
}

type purchaseApi struct {
	secret     string
	flow       *purchase.Flow
	publisher  eventsvc.Publisher
	checkouts  *checkouts
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator
}

func registerPurchaseAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps, cs *checkouts) {
	api := purchaseApi{
		secret:     deps.Conf.Payment.NotifySecret,
		flow:       deps.Purchases,
		publisher:  deps.Publisher,
		checkouts:  cs,
		logger:     deps.Logger,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	pg := g.Group("/purchases", jwt)
	pg.POST("", api.create)
	pg.GET("", api.retrieve)
	pg.DELETE("", api.closeWindow)

	// called by the payment provider
	g.POST("/payments/notify", api.notify)
}

// Handlers

// create starts a checkout and responds with the payment URL once it is known.
// The checkout then waits in the background for the payment outcome or the closing of the page.
func (api *purchaseApi) create(ctx echo.Context) error {
	if api.flow == nil {
		return errPaymentsClosed
	}
	var data CreatePurchaseRequest
	if err := bindAndValidate(ctx, &data, api.validate, api.translator); err != nil {
		return err
	}
	usr, _, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	co, err := api.checkouts.begin(usr.ID, data.CourseID)
	if err != nil {
		return err
	}
	opener := remoteOpener{win: co.win, urls: make(chan string, 1)}
	failed := make(chan error, 1)

	api.checkouts.wg.Add(1)
	go func() {
		defer api.checkouts.wg.Done()
		cctx, cancel := context.WithTimeout(api.checkouts.ctx, checkoutTimeout)
		defer cancel()

		outcome, err := api.flow.CheckoutWith(cctx, opener, data.CourseID, usr)
		recordCheckout(outcome, err)
		api.checkouts.update(co, func(co *checkout) {
			if err != nil {
				co.Status = checkoutError
				co.Error = core.UserMessage(err, "checkout failed")
				return
			}
			co.Status = string(outcome)
		})
		if err != nil {
			api.logger.Warn("checkout failed", err, usr)
			failed <- err
			return
		}
		api.logger.Info("checkout finished", usr, map[string]interface{}{"courseId": data.CourseID, "outcome": outcome})
	}()

	select {
	case url := <-opener.urls:
		api.checkouts.update(co, func(co *checkout) { co.URL = url })
		state, _ := api.checkouts.get(usr.ID)
		return ctx.JSON(http.StatusAccepted, state)
	case err := <-failed:
		return err
	case <-ctx.Request().Context().Done():
		co.win.close()
		return ctx.Request().Context().Err()
	}
}

func (api *purchaseApi) retrieve(ctx echo.Context) error {
	usr, _, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	state, ok := api.checkouts.get(usr.ID)
	if !ok {
		return errNoCheckout
	}
	return ctx.JSON(http.StatusOK, state)
}

// closeWindow reports that the user closed the payment page.
func (api *purchaseApi) closeWindow(ctx echo.Context) error {
	usr, _, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	state, ok := api.checkouts.get(usr.ID)
	if !ok {
		return errNoCheckout
	}
	state.win.close()
	return ctx.JSON(http.StatusAccepted, state)
}

// notify relays a payment notification to the checkout of its user.
func (api *purchaseApi) notify(ctx echo.Context) error {
	if api.publisher == nil || api.secret == "" {
		return errPaymentsClosed
	}
	got := ctx.Request().Header.Get(NotifySecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(api.secret)) != 1 {
		return errBadNotifySecret
	}
	var data purchase.Message
	if err := bindAndValidate(ctx, &data, api.validate, api.translator); err != nil {
		return err
	}
	if err := api.publisher.Publish(ctx.Request().Context(), data); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

type CreatePurchaseRequest struct {
	CourseID string `json:"courseId" validate:"notblank"`
}
