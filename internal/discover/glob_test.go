package discover

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIsWildcard_Detection tests wildcard character detection
func TestIsWildcard_Detection(t *testing.T) {
	assert.False(t, IsWildcard("BTCUSDT"))
	assert.True(t, IsWildcard("*USDT"))
	assert.True(t, IsWildcard("BTC?SDT"))
	assert.True(t, IsWildcard("*"))
}

// TestPattern_SuffixMatch tests the common trailing-wildcard selector
func TestPattern_SuffixMatch(t *testing.T) {
	p := Compile("*USDT")
	matched := p.MatchAny([]string{"BTCUSDT", "ETHUSDT", "BTCBUSD", "USDTBTC"})
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, matched)
}

// TestPattern_PrefixMatch tests a leading-literal selector
func TestPattern_PrefixMatch(t *testing.T) {
	p := Compile("BTC*")
	assert.True(t, p.Match("BTCUSDT"))
	assert.True(t, p.Match("BTC"))
	assert.False(t, p.Match("ETHBTC"))
}

// TestPattern_QuestionMark tests single-character wildcards
func TestPattern_QuestionMark(t *testing.T) {
	p := Compile("BTC?SDT")
	assert.True(t, p.Match("BTCUSDT"))
	assert.False(t, p.Match("BTCSDT"))
	assert.False(t, p.Match("BTCXYSDT"))
}

// TestPattern_CaseInsensitive tests that matching canonicalizes case
func TestPattern_CaseInsensitive(t *testing.T) {
	p := Compile("*usdt")
	assert.True(t, p.Match("btcUSDT"))
	assert.Equal(t, "*USDT", p.String())
}

// TestPattern_InnerStar tests a wildcard in the middle of the selector
func TestPattern_InnerStar(t *testing.T) {
	p := Compile("BTC*PERP")
	assert.True(t, p.Match("BTCUSD_PERP"))
	assert.False(t, p.Match("BTCUSDT"))
}

// TestPattern_StarOnly tests the match-everything selector
func TestPattern_StarOnly(t *testing.T) {
	p := Compile("*")
	assert.True(t, p.Match("ANYTHING"))
	assert.True(t, p.Match(""))
}

// TestPattern_ConsecutiveStars tests that repeated stars collapse
func TestPattern_ConsecutiveStars(t *testing.T) {
	p := Compile("**USDT")
	assert.True(t, p.Match("BTCUSDT"))
	assert.True(t, p.Match("USDT"))
}

// TestPattern_NoWildcard tests that a literal pattern matches exactly
func TestPattern_NoWildcard(t *testing.T) {
	p := Compile("BTCUSDT")
	assert.True(t, p.Match("BTCUSDT"))
	assert.False(t, p.Match("BTCUSDTX"))
	assert.False(t, p.Match("XBTCUSDT"))
}
