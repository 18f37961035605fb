package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/classickits/jerseystore-backend/pkg/logger"
)

func traceOnce(q gormlogger.Interface, took time.Duration, err error) {
	q.Trace(context.Background(), time.Now().Add(-took), func() (string, int64) {
		return `SELECT * FROM "products" WHERE sku = 'RM-1998-H'`, 1
	}, err)
}

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	q := newQueryLogger(logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: buf}), 100*time.Millisecond)

	traceOnce(q, time.Millisecond, nil)
	assert.Zero(t, buf.Len(), "fast query should be silent")

	traceOnce(q, time.Millisecond, gorm.ErrRecordNotFound)
	assert.Zero(t, buf.Len(), "not found should be silent")

	traceOnce(q, 250*time.Millisecond, nil)
	assert.Contains(t, buf.String(), "slow query")
	assert.Contains(t, buf.String(), "RM-1998-H")

	buf.Reset()
	traceOnce(q, time.Millisecond, errors.New("relation does not exist"))
	assert.Contains(t, buf.String(), "query failed")
	assert.Contains(t, buf.String(), "relation does not exist")
}

func TestQueryLoggerSilentMode(t *testing.T) {
	buf := &bytes.Buffer{}
	q := newQueryLogger(logger.New(logger.Options{ServiceName: "test", Output: buf}), time.Millisecond)
	traceOnce(q.LogMode(gormlogger.Silent), time.Second, errors.New("boom"))
	assert.Zero(t, buf.Len())
}

func TestQueryLoggerWithoutLogger(t *testing.T) {
	assert.Equal(t, gormlogger.Discard, newQueryLogger(nil, time.Second))
}
