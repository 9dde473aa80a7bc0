package logging

import (
	"io"
	"os"

	joonix "github.com/joonix/log"
	"github.com/sirupsen/logrus"
)

// New builds the process logger. Prod-like environments get structured
// JSON output through the joonix formatter.
func New(level string, prodLike bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	if prodLike {
		l.SetFormatter(joonix.NewFormatter())
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// Discard returns an entry that drops everything. Used where a logger is optional.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
