package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"
	"github.com/mastercactapus/gpnp/coord"
	"github.com/mastercactapus/gpnp/gcode"
	"github.com/mastercactapus/gpnp/machine"
	"github.com/mastercactapus/gpnp/machine/gcodedriver"
)

// Gcode is implemented by drivers that accept raw G-code.
type Gcode interface {
	SendGcode(gcode string, timeout time.Duration) ([]string, error)
}

type api struct {
	http.Handler
	m       *machine.Machine
	g       Gcode
	timeout time.Duration
	sse     *sse.Server
}

func newAPI(m *machine.Machine, g Gcode, timeout time.Duration, states <-chan machine.State) *api {
	r := mux.NewRouter()

	a := &api{
		Handler: r,
		m:       m,
		g:       g,
		timeout: timeout,
		sse: sse.NewServer(&sse.Options{
			Logger: log.New(io.Discard, "", 0),
		}),
	}

	r.HandleFunc("/api/connect", a.do(m.Connect)).Methods("POST")
	r.HandleFunc("/api/disconnect", a.do(m.Disconnect)).Methods("POST")
	r.HandleFunc("/api/home", a.do(m.Home)).Methods("POST")
	r.HandleFunc("/api/enable", a.enable).Methods("POST")
	r.HandleFunc("/api/move", a.move).Methods("POST")
	r.HandleFunc("/api/pick/{mount}", a.pickPlace(m.Pick)).Methods("POST")
	r.HandleFunc("/api/place/{mount}", a.pickPlace(m.Place)).Methods("POST")
	r.HandleFunc("/api/actuate/{actuator}", a.actuate).Methods("POST")
	r.HandleFunc("/api/location/{mount}", a.location).Methods("GET")
	r.HandleFunc("/api/run", a.run).Methods("POST")

	r.PathPrefix("/events/").Handler(a.sse)
	if states != nil {
		go func() {
			for state := range states {
				data, err := json.Marshal(stateJSON(state))
				if err != nil {
					log.Printf("ERROR: marshal json: %+v", err)
					continue
				}
				a.sse.SendMessage("/events/state", sse.SimpleMessage(string(data)))
			}
		}()
	}

	return a
}

type locationJSON struct {
	Units    coord.LengthUnit `json:"units"`
	X        float64          `json:"x"`
	Y        float64          `json:"y"`
	Z        float64          `json:"z"`
	Rotation float64          `json:"rotation"`
}

func toJSON(l coord.Location) locationJSON {
	return locationJSON{Units: l.Units, X: l.X, Y: l.Y, Z: l.Z, Rotation: l.Rotation}
}

func stateJSON(s machine.State) interface{} {
	return struct {
		Connected bool         `json:"connected"`
		Enabled   bool         `json:"enabled"`
		Position  locationJSON `json:"position"`
	}{s.Connected, s.Enabled, toJSON(s.Position)}
}

func httpError(w http.ResponseWriter, op string, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, machine.ErrUnknown):
		code = http.StatusNotFound
	case errors.Is(err, gcodedriver.ErrNotConnected):
		code = http.StatusConflict
	case errors.Is(err, gcodedriver.ErrCommandTimeout), errors.Is(err, gcodedriver.ErrHandshakeTimeout):
		code = http.StatusGatewayTimeout
	}
	if code >= 500 {
		log.Printf("ERROR: %s: %+v", op, err)
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		log.Println("ERROR: encode:", err)
	}
}

func (a *api) do(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := fn()
		if err != nil {
			httpError(w, req.URL.Path, err)
		}
	}
}

func (a *api) enable(w http.ResponseWriter, req *http.Request) {
	err := a.m.SetEnabled(req.FormValue("on") == "1")
	if err != nil {
		httpError(w, "enable", err)
	}
}

type moveRequest struct {
	Mount    string   `json:"mount"`
	Units    string   `json:"units"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
	Z        *float64 `json:"z"`
	Rotation *float64 `json:"rotation"`
	Speed    *float64 `json:"speed"`
}

func axis(v *float64) float64 {
	if v == nil {
		return coord.Unspecified
	}
	return *v
}

func (a *api) move(w http.ResponseWriter, req *http.Request) {
	var r moveRequest
	err := json.NewDecoder(req.Body).Decode(&r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	units, err := coord.ParseLengthUnit(r.Units)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	speed := 1.0
	if r.Speed != nil {
		speed = *r.Speed
	}
	if speed <= 0 || speed > 1 || math.IsNaN(speed) {
		http.Error(w, "speed must be in (0, 1]", http.StatusBadRequest)
		return
	}

	hm, err := a.m.Mount(r.Mount)
	if err != nil {
		httpError(w, "move", err)
		return
	}

	loc := coord.NewLocation(units, axis(r.X), axis(r.Y), axis(r.Z), axis(r.Rotation))
	err = a.m.MoveTo(hm, loc, speed)
	if err != nil {
		httpError(w, "move", err)
		return
	}
	writeJSON(w, toJSON(a.m.Location(hm)))
}

func (a *api) pickPlace(fn func(machine.HeadMountable) error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		hm, err := a.m.Mount(mux.Vars(req)["mount"])
		if err == nil {
			err = fn(hm)
		}
		if err != nil {
			httpError(w, req.URL.Path, err)
		}
	}
}

func (a *api) actuate(w http.ResponseWriter, req *http.Request) {
	act, err := a.m.Actuator(mux.Vars(req)["actuator"])
	if err != nil {
		httpError(w, "actuate", err)
		return
	}

	if v := req.FormValue("value"); v != "" {
		val, err := strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = a.m.ActuateValue(act, val)
		if err != nil {
			httpError(w, "actuate", err)
		}
		return
	}

	err = a.m.ActuateBool(act, req.FormValue("on") == "1")
	if err != nil {
		httpError(w, "actuate", err)
	}
}

func (a *api) location(w http.ResponseWriter, req *http.Request) {
	hm, err := a.m.Mount(mux.Vars(req)["mount"])
	if err != nil {
		httpError(w, "location", err)
		return
	}
	writeJSON(w, toJSON(a.m.Location(hm)))
}

// run normalizes the posted G-code and sends it one block at a time,
// returning every response line.
func (a *api) run(w http.ResponseWriter, req *http.Request) {
	p := gcode.NewParser(req.Body)
	var lines []string
	for {
		b, err := p.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = b.Validate()
		if err != nil {
			http.Error(w, b.String()+": "+err.Error(), http.StatusBadRequest)
			return
		}
		lines = append(lines, b.String())
	}

	res, err := a.g.SendGcode(strings.Join(lines, "\n"), a.timeout)
	if err != nil {
		httpError(w, "run", err)
		return
	}
	if res == nil {
		res = []string{}
	}
	writeJSON(w, res)
}
