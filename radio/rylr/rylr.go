// Package rylr drives a REYAX RYLR896 class LoRa modem over its AT command
// serial interface. The modem does its own framing and CRC; payloads are
// carried as hex text.
package rylr

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"github.com/jd3nn1s/flightlink/radio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// MaxData is the longest data field AT+SEND accepts.
	MaxData = 240

	// BroadcastAddress reaches every modem on the same network id.
	BroadcastAddress = 0

	maxPowerDBm = 15
	queueDepth  = 8
)

var (
	ErrClosed           = errors.New("modem closed")
	ErrPayloadTooLarge  = errors.New("payload too large for modem")
	ErrNothingToSend    = errors.New("tx without prepared payload")
	ErrMalformedReceive = errors.New("malformed receive line")
)

// ModemError is an +ERR=<code> response.
type ModemError struct {
	Command string
	Code    int
}

func (e *ModemError) Error() string {
	return fmt.Sprintf("%s: modem error %d", e.Command, e.Code)
}

// bandwidth codes for AT+PARAMETER
var bandwidths = map[uint32]int{
	7800:   0,
	10400:  1,
	15600:  2,
	20800:  3,
	31250:  4,
	41700:  5,
	62500:  6,
	125000: 7,
	250000: 8,
	500000: 9,
}

type Port interface {
	io.ReadWriteCloser
}

// settleWindow is how long a command waits for the replies still owed to
// commands abandoned before it.
var settleWindow = 50 * time.Millisecond

// to allow testing
var openPort = func(name string, baud int) (Port, error) {
	return serial.OpenPort(&serial.Config{Name: name, Baud: baud})
}

// Modem implements radio.PHY. Commands are serialized; unsolicited +RCV
// lines are queued for Rx regardless of what the caller is doing.
type Modem struct {
	Address     int
	Destination int

	port      Port
	responses chan string
	received  chan string
	done      chan struct{}

	mu         sync.Mutex
	configured *radio.Modulation
	pending    string
	abandoned  int
	closeOnce  sync.Once
}

func Open(name string, baud int, address int) (*Modem, error) {
	p, err := openPort(name, baud)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open modem port %s", name)
	}
	log.WithField("port", name).Info("rylr modem port opened")
	return New(p, address), nil
}

// New takes ownership of port and starts reading from it.
func New(port Port, address int) *Modem {
	m := &Modem{
		Address:     address,
		Destination: BroadcastAddress,
		port:        port,
		responses:   make(chan string, queueDepth),
		received:    make(chan string, queueDepth),
		done:        make(chan struct{}),
	}
	go m.readLoop()
	return m
}

func (m *Modem) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = m.port.Close()
	})
	return err
}

func (m *Modem) readLoop() {
	defer close(m.done)
	scanner := bufio.NewScanner(m.port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ch := m.responses
		if strings.HasPrefix(line, "+RCV=") {
			ch = m.received
		}
		select {
		case ch <- line:
		default:
			log.WithField("line", line).Warn("rylr: queue full, dropping line")
		}
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Debug("rylr: reader stopped")
	}
}

// command sends an AT command and waits for +OK or +ERR. Other lines, such
// as +READY after a reset, are skipped. The modem does not echo the command
// in its reply, so a reply to an abandoned command that arrives later than
// settleWindow is still taken as the answer to the next one.
func (m *Modem) command(ctx context.Context, cmd string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.abandoned > 0 {
		m.settle(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	// stray replies must not answer this command
	for drained := false; !drained; {
		select {
		case <-m.responses:
		default:
			drained = true
		}
	}

	if _, err := io.WriteString(m.port, cmd+"\r\n"); err != nil {
		return errors.Wrapf(err, "unable to write %s", cmd)
	}
	for {
		select {
		case line := <-m.responses:
			if !isFinal(line) {
				log.WithField("line", line).Debug("rylr: skipping line")
				continue
			}
			if line == "+OK" {
				return nil
			}
			code, err := strconv.Atoi(strings.TrimPrefix(line, "+ERR="))
			if err != nil {
				code = -1
			}
			return &ModemError{Command: cmd, Code: code}
		case <-m.done:
			return ErrClosed
		case <-ctx.Done():
			m.abandoned++
			return ctx.Err()
		}
	}
}

// settle discards the final replies owed to abandoned commands. Called with
// mu held.
func (m *Modem) settle(ctx context.Context) {
	timer := time.NewTimer(settleWindow)
	defer timer.Stop()
	for m.abandoned > 0 {
		select {
		case line := <-m.responses:
			if isFinal(line) {
				m.abandoned--
				log.WithField("line", line).Debug("rylr: discarding reply to abandoned command")
			}
		case <-timer.C:
			m.abandoned = 0
			return
		case <-m.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func isFinal(line string) bool {
	return line == "+OK" || strings.HasPrefix(line, "+ERR=")
}

func (m *Modem) configure(ctx context.Context, mod radio.Modulation) error {
	m.mu.Lock()
	same := m.configured != nil && *m.configured == mod
	m.mu.Unlock()
	if same {
		return nil
	}

	bw, ok := bandwidths[mod.BandwidthHz]
	if !ok {
		return errors.Errorf("unsupported bandwidth %d Hz", mod.BandwidthHz)
	}
	if mod.CodingRate < 5 || mod.CodingRate > 8 {
		return errors.Errorf("unsupported coding rate 4/%d", mod.CodingRate)
	}
	power := mod.TxPowerDBm
	if power > maxPowerDBm {
		power = maxPowerDBm
	} else if power < 0 {
		power = 0
	}

	cmds := []string{
		fmt.Sprintf("AT+ADDRESS=%d", m.Address),
		fmt.Sprintf("AT+BAND=%d", mod.FrequencyHz),
		fmt.Sprintf("AT+PARAMETER=%d,%d,%d,%d", mod.SpreadingFactor, bw, mod.CodingRate-4, mod.PreambleLen),
		fmt.Sprintf("AT+CRFOP=%d", power),
	}
	for _, cmd := range cmds {
		if err := m.command(ctx, cmd); err != nil {
			m.mu.Lock()
			m.configured = nil
			m.mu.Unlock()
			return err
		}
	}

	m.mu.Lock()
	m.configured = &mod
	m.mu.Unlock()
	log.WithField("modulation", fmt.Sprintf("%+v", mod)).Debug("rylr: modem configured")
	return nil
}

func (m *Modem) PrepareTx(ctx context.Context, mod radio.Modulation, payload []byte) error {
	if hex.EncodedLen(len(payload)) > MaxData {
		return errors.Wrapf(ErrPayloadTooLarge, "%d bytes", len(payload))
	}
	if err := m.configure(ctx, mod); err != nil {
		return err
	}
	m.mu.Lock()
	m.pending = strings.ToUpper(hex.EncodeToString(payload))
	m.mu.Unlock()
	return nil
}

func (m *Modem) Tx(ctx context.Context) error {
	m.mu.Lock()
	data := m.pending
	m.pending = ""
	m.mu.Unlock()
	if data == "" {
		return ErrNothingToSend
	}
	return m.command(ctx, fmt.Sprintf("AT+SEND=%d,%d,%s", m.Destination, len(data), data))
}

func (m *Modem) PrepareRx(ctx context.Context, mod radio.Modulation) error {
	return m.configure(ctx, mod)
}

func (m *Modem) Rx(ctx context.Context, buf []byte) (int, radio.PacketStatus, error) {
	select {
	case line := <-m.received:
		payload, status, err := parseReceive(line)
		if err != nil {
			return 0, radio.PacketStatus{}, err
		}
		return copy(buf, payload), status, nil
	case <-m.done:
		return 0, radio.PacketStatus{}, ErrClosed
	case <-ctx.Done():
		return 0, radio.PacketStatus{}, ctx.Err()
	}
}

// parseReceive decodes +RCV=<address>,<length>,<data>,<rssi>,<snr>.
func parseReceive(line string) ([]byte, radio.PacketStatus, error) {
	parts := strings.Split(strings.TrimPrefix(line, "+RCV="), ",")
	if len(parts) != 5 {
		return nil, radio.PacketStatus{}, errors.Wrapf(ErrMalformedReceive, "%d fields in %q", len(parts), line)
	}
	length, err := strconv.Atoi(parts[1])
	if err != nil || length != len(parts[2]) {
		return nil, radio.PacketStatus{}, errors.Wrapf(ErrMalformedReceive, "length %q does not match data", parts[1])
	}
	payload, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, radio.PacketStatus{}, errors.Wrapf(ErrMalformedReceive, "data: %v", err)
	}
	rssi, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil, radio.PacketStatus{}, errors.Wrapf(ErrMalformedReceive, "rssi %q", parts[3])
	}
	snr, err := strconv.Atoi(parts[4])
	if err != nil {
		return nil, radio.PacketStatus{}, errors.Wrapf(ErrMalformedReceive, "snr %q", parts[4])
	}
	return payload, radio.PacketStatus{RSSI: rssi, SNR: snr}, nil
}
