package logger

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Format вывода логов.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// New — логгер процесса. Каждая запись несёт service и hostname.
func New(service, level, format string, out io.Writer) (logrus.FieldLogger, error) {
	l := logrus.New()
	l.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}
	l.SetLevel(lvl)

	switch format {
	case FormatText:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON, "":
		l.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{logrus.FieldKeyTime: "timestamp", logrus.FieldKeyMsg: "message"},
		})
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return l.WithFields(logrus.Fields{"service": service, "hostname": hostname}), nil
}

type ctxKey struct{}

// WithRequestID кладёт id запроса в контекст.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext добавляет к log id запроса, если он есть в ctx.
func FromContext(ctx context.Context, log logrus.FieldLogger) logrus.FieldLogger {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return log.WithField("request_id", id)
	}
	return log
}
