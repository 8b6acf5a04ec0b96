package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/elimu/core/purchase"
	"github.com/trezcool/elimu/core/quiz"
)

var (
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "elimu_http_request_duration_seconds",
			Help:    "Time spent serving API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)

	quizSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "elimu_quiz_sessions_current",
			Help: "Current number of live quiz sessions",
		},
	)

	quizSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elimu_quiz_submissions_total",
			Help: "Total number of submitted quiz attempts",
		},
		[]string{"auto", "passed"}, // auto: submitted by the timer
	)

	checkoutOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elimu_checkout_outcomes_total",
			Help: "Total number of finished checkouts by outcome",
		},
		[]string{"outcome"}, // paid | failed | closed | error
	)

	coursesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "elimu_courses_created_total",
			Help: "Total number of courses submitted through the authoring form",
		},
	)
)

func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)

		code := ctx.Response().Status
		if err != nil {
			if herr, ok := err.(*echo.HTTPError); ok {
				code = herr.Code
			} else if !ctx.Response().Committed {
				code = 0 // decided by the error handler
			}
		}
		requestDuration.
			WithLabelValues(ctx.Request().Method, ctx.Path(), strconv.Itoa(code)).
			Observe(time.Since(start).Seconds())
		return err
	}
}

func recordSubmission(res quiz.Result) {
	quizSubmissions.WithLabelValues(strconv.FormatBool(res.AutoSubmitted), strconv.FormatBool(res.Passed())).Inc()
}

func recordCheckout(outcome purchase.Outcome, err error) {
	if err != nil {
		checkoutOutcomes.WithLabelValues("error").Inc()
		return
	}
	checkoutOutcomes.WithLabelValues(string(outcome)).Inc()
}
