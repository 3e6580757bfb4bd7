package dig_container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/BISHOP-X/BABCOCK-VPL/apps/api/echo"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		driver      string
		redis       string
		wantErr     bool
		wantClosers int
	}{
		{name: "memory store", driver: "memory", wantClosers: 1},
		{name: "memory store with cache", driver: "memory", redis: "127.0.0.1:6399", wantClosers: 2},
		{name: "unknown driver", driver: "mongo", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV", "TEST")
			t.Setenv("TEST_STORAGE_DRIVER", tt.driver)
			t.Setenv("TEST_REDIS_ADDR", tt.redis)
			t.Setenv("TEST_KAFKA_BROKERS", "")

			c := New()
			err := c.Invoke(func(srv *echoapi.Server, labSvc lab.Service, p ClosersParam) {
				assert.NotNil(t, srv)
				assert.NotNil(t, labSvc)

				var closers int
				for _, closer := range p.Closers {
					if closer != nil {
						closers++
						assert.NoError(t, closer.Close())
					}
				}
				assert.Equal(t, tt.wantClosers, closers)
			})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown storage driver")
				return
			}
			require.NoError(t, err)
		})
	}
}
