package observability

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

func CaptureErr(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}

// CaptureErrWith отправляет ошибку с тегами (op, user и т.п.).
func CaptureErrWith(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// RecoverAs превращает панику в ошибку для Sentry; вызывать через defer.
func RecoverAs(where string) {
	if r := recover(); r != nil {
		CaptureErr(fmt.Errorf("panic in %s: %v", where, r))
	}
}
