package progress

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestPostfix(t *testing.T) {
	values := map[string]float64{"g_loss": 0.5, "d_loss": 1.25, "dice": 0.123456}
	assert.Equal(t, "g_loss=0.5000 d_loss=1.2500 dice=0.1235", Postfix([]string{"g_loss", "d_loss", "missing", "dice"}, values))
	assert.Equal(t, "", Postfix(nil, values))
}

func TestBarCount(t *testing.T) {
	b := New("test", 3, true)
	b.Add("")
	b.Add("x=1.0000")
	b.Finish()
	assert.Equal(t, 2, b.Count())
}
