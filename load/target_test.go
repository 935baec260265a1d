package load

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetPort(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want string
	}{
		{name: "empty", env: "", want: "8070"},
		{name: "set", env: "9000", want: "9000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(TargetPortEnv, tt.env)
			assert.Equal(t, tt.want, TargetPort())
		})
	}
	t.Run("unset", func(t *testing.T) {
		t.Setenv(TargetPortEnv, "9000")
		require.NoError(t, os.Unsetenv(TargetPortEnv))
		_, ok := os.LookupEnv(TargetPortEnv)
		require.False(t, ok)
		assert.Equal(t, "8070", TargetPort())
		assert.Equal(t, "http://localhost:8070/bid-request", TargetURL("", TargetPort()))
	})
}

func TestTargetURL(t *testing.T) {
	t.Setenv(TargetPortEnv, "")
	assert.Equal(t, "http://localhost:8070/bid-request", TargetURL("", TargetPort()))
	t.Setenv(TargetPortEnv, "9000")
	assert.Equal(t, "http://localhost:9000/bid-request", TargetURL("", TargetPort()))
	assert.Equal(t, "http://receiver:9000/bid-request", TargetURL("receiver", "9000"))
	assert.Equal(t, "http://localhost:8070/bid-request", TargetURL("", ""))
}
