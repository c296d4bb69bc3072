// Package sim provides an in-memory controller that speaks enough of the
// Marlin line protocol to drive gpnp without hardware.
package sim

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mastercactapus/gpnp/coord"
	"github.com/mastercactapus/gpnp/gcode"
	"github.com/mastercactapus/gpnp/vm"
)

// Options configure a simulated controller.
type Options struct {
	// Delay is applied before each response.
	Delay time.Duration

	// Silent controllers read commands but never answer them.
	Silent bool

	// Banner is printed when the controller starts, defaults to "start".
	Banner string
}

// Controller is an io.ReadWriteCloser backed by a vm.Machine.
type Controller struct {
	opt Options

	mx       sync.Mutex
	m        *vm.Machine
	received []string

	writeBuf []byte
	lines    chan string

	pr *io.PipeReader
	pw *io.PipeWriter

	closeOnce sync.Once
	closeCh   chan struct{}
}

var _ io.ReadWriteCloser = &Controller{}

// New starts a simulated controller.
func New(opt Options) *Controller {
	if opt.Banner == "" {
		opt.Banner = "start"
	}
	pr, pw := io.Pipe()
	c := &Controller{
		opt:     opt,
		m:       vm.NewMachine(),
		lines:   make(chan string, 100),
		pr:      pr,
		pw:      pw,
		closeCh: make(chan struct{}),
	}
	go c.run()
	return c
}

// Read returns controller output.
func (c *Controller) Read(p []byte) (int, error) { return c.pr.Read(p) }

// Write accepts host commands; every complete line is executed in order.
func (c *Controller) Write(p []byte) (int, error) {
	select {
	case <-c.closeCh:
		return 0, io.ErrClosedPipe
	default:
	}

	c.mx.Lock()
	c.writeBuf = append(c.writeBuf, p...)
	var lines []string
	for {
		i := bytes.IndexByte(c.writeBuf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, strings.TrimSpace(string(c.writeBuf[:i])))
		c.writeBuf = c.writeBuf[i+1:]
	}
	c.mx.Unlock()

	for _, l := range lines {
		select {
		case c.lines <- l:
		case <-c.closeCh:
			return 0, io.ErrClosedPipe
		}
	}
	return len(p), nil
}

// Close stops the controller; pending reads return io.EOF.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.pw.Close()
	})
	return nil
}

// Position returns the logical X/Y/Z position and the E (rotation) axis.
func (c *Controller) Position() (coord.Point, float64) {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.m.WPos(), c.m.E()
}

// Received returns every non-empty line the controller has executed.
func (c *Controller) Received() []string {
	c.mx.Lock()
	defer c.mx.Unlock()
	res := make([]string, len(c.received))
	copy(res, c.received)
	return res
}

func (c *Controller) println(s string) bool {
	_, err := io.WriteString(c.pw, s+"\n")
	return err == nil
}

func (c *Controller) run() {
	if !c.println(c.opt.Banner) {
		return
	}
	for {
		select {
		case <-c.closeCh:
			return
		case line := <-c.lines:
			if line == "" {
				continue
			}
			resp := c.exec(line)
			if c.opt.Silent {
				continue
			}
			if c.opt.Delay > 0 {
				select {
				case <-time.After(c.opt.Delay):
				case <-c.closeCh:
					return
				}
			}
			for _, r := range resp {
				if !c.println(r) {
					return
				}
			}
		}
	}
}

func (c *Controller) exec(line string) []string {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.received = append(c.received, line)

	blocks, err := gcode.Parse(line)
	if err != nil {
		return []string{fmt.Sprintf("echo:Unknown command: %q", line), "ok"}
	}
	var resp []string
	for _, b := range blocks {
		if b.String() == "M114" {
			p := c.m.WPos()
			resp = append(resp, fmt.Sprintf("X:%.2f Y:%.2f Z:%.2f E:%.2f Count X:0 Y:0 Z:0", p.X, p.Y, p.Z, c.m.E()))
			continue
		}
		err = c.m.Run(b)
		if err != nil {
			resp = append(resp, "echo:"+err.Error())
		}
	}
	return append(resp, "ok")
}
