package proxy

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSocksClient(t *testing.T) {
	c, err := NewSocksClient("127.0.0.1:8888", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, c.Timeout)

	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.NotNil(t, tr.DialContext)

	c, err = NewSocksClient("127.0.0.1:8888", 0)
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, c.Timeout)
}
