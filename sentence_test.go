package flightlink

import (
	"github.com/stretchr/testify/assert"
	"strings"
	"testing"
)

func feedAll(f *sentenceFramer, data string) []string {
	var out []string
	for i := 0; i < len(data); i++ {
		if s, ok := f.Feed(data[i]); ok {
			out = append(out, s)
		}
	}
	return out
}

func TestFramer(t *testing.T) {
	f := sentenceFramer{}
	got := feedAll(&f, "garbage$GPGLL,1*00\r\n$GPGGA,2*00\r\n")
	assert.Equal(t, []string{"$GPGLL,1*00", "$GPGGA,2*00"}, got)
}

func TestFramerResync(t *testing.T) {
	f := sentenceFramer{}
	got := feedAll(&f, "$GPGGA,12$GPGLL,1*00\r\n")
	assert.Equal(t, []string{"$GPGLL,1*00"}, got)
}

func TestFramerNonPrintable(t *testing.T) {
	f := sentenceFramer{}
	got := feedAll(&f, "$GPGGA,\x00,1*00\r\n$GPGLL,1*00\n")
	assert.Equal(t, []string{"$GPGLL,1*00"}, got)
}

func TestFramerTooLong(t *testing.T) {
	f := sentenceFramer{}
	long := "$" + strings.Repeat("A", maxSentenceLen+10) + "\r\n"
	got := feedAll(&f, long+"$GPGLL,1*00\r\n")
	assert.Equal(t, []string{"$GPGLL,1*00"}, got)
}

func TestFramerMaxLength(t *testing.T) {
	f := sentenceFramer{}
	exact := "$" + strings.Repeat("A", maxSentenceLen-1)
	got := feedAll(&f, exact+"\n")
	assert.Equal(t, []string{exact}, got)
}
