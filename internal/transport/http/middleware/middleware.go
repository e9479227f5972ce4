// middleware — цепочка обработчиков loopback-сервера OAuth-колбэка:
// восстановление после паники, request id, журнал запросов и таймаут.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// Middleware — стандартный net/http мидлвар.
type Middleware func(http.Handler) http.Handler

// Chain применяет мидлвары к обработчику в порядке их перечисления:
// первый в списке получает запрос первым.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Loopback возвращает стек колбэк-сервера: Recover снаружи, чтобы паника
// любого слоя превратилась в 500, затем RequestID, Logging и Timeout (d > 0).
func Loopback(lg *slog.Logger, d time.Duration) []Middleware {
	mws := []Middleware{Recover(), RequestID(), Logging(lg)}
	if d > 0 {
		mws = append(mws, Timeout(d))
	}
	return mws
}

// statusWriter запоминает статус и размер ответа колбэка для Logging;
// статус 0 означает, что обработчик ничего не записал.
type statusWriter struct {
	http.ResponseWriter
	status int
	count  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	count, err := w.ResponseWriter.Write(p)
	w.count += count
	return count, err
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w}
}
