package transport

import (
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mastercactapus/gpnp/spjs"
)

const spjsCloseTimeout = 2 * time.Second

// spjsStream exposes one port of a Serial Port JSON Server as a byte stream.
type spjsStream struct {
	sp       *spjs.SPJS
	ownsSPJS bool
	port     string
	baud     int

	pr *io.PipeReader
	pw *io.PipeWriter

	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewSPJS returns a line connection to port on the SPJS server sp.
// The server delivers output one line per data frame.
func NewSPJS(sp *spjs.SPJS, port string, baud int) *LineConn {
	return NewLineConn(newSPJSStream(sp, port, baud))
}

// DialSPJS connects to the SPJS server at url and opens port on it. The
// server connection is closed along with the returned Conn.
func DialSPJS(url, port string, baud int) *LineConn {
	s := newSPJSStream(spjs.NewSPJS(url), port, baud)
	s.ownsSPJS = true
	return NewLineConn(s)
}

func newSPJSStream(sp *spjs.SPJS, port string, baud int) *spjsStream {
	if baud == 0 {
		baud = 115200
	}
	pr, pw := io.Pipe()
	s := &spjsStream{
		sp:      sp,
		port:    port,
		baud:    baud,
		pr:      pr,
		pw:      pw,
		closeCh: make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *spjsStream) loop() {
	for {
		var msg interface{}
		select {
		case <-s.closeCh:
			return
		case msg = <-s.sp.Messages():
		}

		switch m := msg.(type) {
		case *spjs.DataFrame:
			if m.Port != s.port || m.Data == "" {
				continue
			}
			data := m.Data
			if !strings.HasSuffix(data, "\n") {
				data += "\n"
			}
			_, err := io.WriteString(s.pw, data)
			if err != nil {
				return
			}
		case *spjs.SerialPortList:
			for _, port := range m.SerialPorts {
				if port.Name != s.port || port.IsOpen {
					continue
				}
				err := s.sp.Open(s.port, s.baud)
				if err != nil {
					log.Println("ERROR: spjs open:", err)
				}
			}
		case *spjs.ErrorMessage:
			log.Println("ERROR: spjs:", m.Error)
		}
	}
}

func (s *spjsStream) Read(p []byte) (int, error) { return s.pr.Read(p) }

func (s *spjsStream) Write(p []byte) (int, error) {
	var j spjs.JSON
	j.Port = s.port
	for _, line := range strings.SplitAfter(string(p), "\n") {
		if line == "" {
			continue
		}
		j.Data = append(j.Data, spjs.Data{Data: line, ID: uuid.NewString()})
	}
	if len(j.Data) == 0 {
		return 0, nil
	}
	err := s.sp.SendJSON(j)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *spjsStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.pw.Close()
	})

	// the server may be gone; don't hang waiting on it
	errCh := make(chan error, 1)
	go func() { errCh <- s.sp.ClosePort(s.port) }()
	var err error
	select {
	case err = <-errCh:
	case <-time.After(spjsCloseTimeout):
		err = errors.New("spjs: timeout closing " + s.port)
	}

	if s.ownsSPJS {
		s.sp.Close()
	}
	return err
}
