package flightlink

import (
	log "github.com/sirupsen/logrus"
)

const (
	// NMEA 0183 caps a sentence at 82 characters; leave room for chatty
	// receivers but never grow without bound on a noisy line.
	maxSentenceLen = 128
)

type parserState int

const (
	waitStart parserState = iota
	inSentence
)

// sentenceFramer splits a raw NMEA byte stream into sentences. Anything it
// cannot frame is dropped up to the next '$'.
type sentenceFramer struct {
	state parserState
	buf   []byte
}

// Feed consumes one byte and returns a sentence once its delimiter arrives.
func (f *sentenceFramer) Feed(b byte) (string, bool) {
	switch f.state {
	case waitStart:
		if b == '$' {
			f.start()
		}
		return "", false
	}

	switch {
	case b == '\n':
		f.state = waitStart
		return string(f.buf), true
	case b == '\r':
		return "", false
	case b == '$':
		log.WithField("partial", string(f.buf)).Warn("gps: sentence restarted before delimiter, resynchronizing")
		f.start()
		return "", false
	case b < 0x20 || b > 0x7e:
		log.WithField("byte", b).Warn("gps: non-printable byte in sentence, resynchronizing")
		f.reset()
		return "", false
	case len(f.buf) >= maxSentenceLen:
		log.WithField("length", len(f.buf)).Warn("gps: sentence too long, resynchronizing")
		f.reset()
		return "", false
	}
	f.buf = append(f.buf, b)
	return "", false
}

func (f *sentenceFramer) start() {
	f.buf = append(f.buf[:0], '$')
	f.state = inSentence
}

func (f *sentenceFramer) reset() {
	f.buf = f.buf[:0]
	f.state = waitStart
}
