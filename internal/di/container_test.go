package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainerZeroValueFieldsAreNil(t *testing.T) {
	c := &Container{}
	assert.Nil(t, c.OrdersDB)
	assert.Nil(t, c.KV)
	assert.Nil(t, c.Exchanges)
	assert.Nil(t, c.Decision)
	assert.Nil(t, c.OMS)
	assert.Nil(t, c.S3Backups)
}

func TestContainerCloseOnZeroValueIsSafe(t *testing.T) {
	c := &Container{}
	assert.NotPanics(t, func() { c.Close() })
}

func TestContainerCloseIsIdempotent(t *testing.T) {
	c := &Container{}
	c.Close()
	assert.NotPanics(t, func() { c.Close() })
}
