package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/mastercactapus/gpnp/machine"
	"github.com/mastercactapus/gpnp/machine/gcodedriver"
	"github.com/mastercactapus/gpnp/sim"
	"github.com/mastercactapus/gpnp/transport"
)

func dialSim(gcodedriver.TransportConfig) (transport.Conn, error) {
	return transport.NewLineConn(sim.New(sim.Options{})), nil
}

func dialConfig(tc gcodedriver.TransportConfig) (transport.Conn, error) {
	return tc.Dial()
}

func main() {
	log.SetFlags(log.Lshortfile)

	cfgFile := flag.String("config", "", "Path to the machine config file (TOML).")
	addr := flag.String("addr", ":9091", "Address to bind the gpnp server to.")
	simulate := flag.Bool("sim", false, "Use a simulated controller instead of the configured transport.")
	debug := flag.Bool("debug", false, "Log every line sent to and received from the controller.")
	flag.Parse()

	cfg, err := loadConfig(*cfgFile)
	if err != nil {
		log.Fatalln("ERROR: load config:", err)
	}
	if *debug {
		cfg.Driver.Debug = true
	}

	dial := dialConfig
	if *simulate {
		dial = dialSim
	}

	drv, err := gcodedriver.Build(cfg.Driver, dial)
	if err != nil {
		log.Fatalln("ERROR: driver:", err)
	}

	m, err := machine.NewMachine(drv, cfg.Mounts, cfg.Actuators)
	if err != nil {
		log.Fatalln("ERROR: machine:", err)
	}

	api := newAPI(m, drv, cfg.Driver.CommandTimeout, drv.State())

	log.Println("Listening on", *addr)
	err = http.ListenAndServe(*addr, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		log.Printf("%s %s - %s", req.Method, req.URL.Path, req.RemoteAddr)
		api.ServeHTTP(w, req)
	}))
	if err != nil {
		log.Fatal(err)
	}
}
