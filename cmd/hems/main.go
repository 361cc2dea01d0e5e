/*************************************************************************
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command hems is an example EEBUS home energy management node: it dials a
// heat pump node, binds and subscribes to its Measurement feature, and
// prints every notification it receives. Binding and subscribing happen
// directly at startup; there is no interactive console.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/crewjam/rfc5424"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/shipspine/node/certwatch"
	"github.com/shipspine/node/metrics"
	"github.com/shipspine/node/nodeconfig"
	"github.com/shipspine/node/ship"
	"github.com/shipspine/node/shiplog"
	"github.com/shipspine/node/spine/device"
	"github.com/shipspine/node/spine/model"
	"github.com/shipspine/node/store"
	"github.com/shipspine/node/transport"
	"github.com/shipspine/node/utils"
	"github.com/shipspine/node/version"
)

var (
	configFile   string
	remoteAddr   string
	remoteDevice string
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "hems",
		Short: "Example EEBUS HEMS node consuming a heat pump's measurement data",
		RunE:  run,
	}
	root.Flags().StringVarP(&configFile, "config", "c", "", "path to node config file")
	root.Flags().StringVar(&remoteAddr, "remote-addr", "", "host:port of the heat pump node to dial")
	root.Flags().StringVar(&remoteDevice, "remote-device", "", "SPINE device address of the heat pump (its d:_i:... identity)")
	root.AddCommand(&cobra.Command{
		Use: "version",
		RunE: func(cmd *cobra.Command, args []string) error {
			version.PrintVersion(os.Stdout)
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if configFile == "" || remoteAddr == "" || remoteDevice == "" {
		fmt.Fprintln(os.Stderr, "missing --config, --remote-addr, or --remote-device")
		os.Exit(-1)
	}
	nc, err := nodeconfig.LoadFile(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(-1)
	}

	log := shiplog.NewDiscard()
	if nc.Global.Log_File != "" {
		fout, err := os.OpenFile(nc.Global.Log_File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
			os.Exit(-1)
		}
		defer fout.Close()
		log = shiplog.New(fout)
	}
	if lvl, err := shiplog.LevelFromString(nc.Global.Log_Level); err == nil {
		_ = log.SetLevel(lvl)
	}

	watcher, err := certwatch.New(nc.Global.Certificate_File, nc.Global.Private_Key_File, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading credentials: %v\n", err)
		os.Exit(-1)
	}
	defer watcher.Close()

	st, err := store.Open(nc.Global.State_Dir + "/hems.db")
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening state store: %v\n", err)
		os.Exit(-1)
	}
	defer st.Close()

	_ = metrics.NewRegistry(prometheus.DefaultRegisterer)

	deviceID, err := nc.EnsureDeviceUUID(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "assigning device identity: %v\n", err)
		os.Exit(-1)
	}
	dev := device.New("d:_i:" + deviceID.String())
	entity := dev.AddEntity([]uint32{0}, "HEMS")
	feat := entity.AddFeature(0, "Measurement", "client",
		model.FunctionMeasurementData,
		model.FunctionNodeManagementBindingRequestCall,
		model.FunctionNodeManagementSubscriptionRequestCall,
	)
	if bindings, err := st.LoadBindings(); err == nil {
		for _, entry := range bindings {
			_ = dev.Bindings.Commit(entry)
		}
	}
	if subs, err := st.LoadSubscriptions(); err == nil {
		for _, entry := range subs {
			_ = dev.Subscriptions.Commit(entry)
		}
	}

	verify := func(peerSki string) error {
		if peerSki != nc.Global.Remote_SKI {
			return fmt.Errorf("unexpected remote SKI %s", peerSki)
		}
		return nil
	}
	wsConn, err := transport.DialClient(remoteAddr, watcher.Current(), verify)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial failed: %v\n", err)
		os.Exit(-1)
	}

	cconn := ship.NewClient(wsConn, watcher.Current().Ski, nc.Global.Remote_SKI, log, nil)
	dev.Send = func(raw []byte) error { return cconn.Send(raw) }
	cconn.SetSpineHandler(func(payload json.RawMessage) {
		dg, err := model.DecodeDatagram(payload)
		if err != nil {
			_ = log.Warn("dropping malformed spine datagram", rfc5424.SDParam{Name: "error", Value: err.Error()})
			return
		}
		dev.Dispatch(dg)
		printMeasurement(feat)
	})

	runDone := make(chan string, 1)
	go func() { runDone <- cconn.Run() }()

	local := &model.FeatureAddress{Device: &dev.Address, Entity: []*uint32{u32p(0)}, Feature: u32p(0)}
	remote := &model.FeatureAddress{Device: strp(remoteDevice), Entity: []*uint32{u32p(0)}, Feature: u32p(0)}
	if err := dev.CallBind(local, remote, "Measurement"); err != nil {
		_ = log.Warn("bind call failed", rfc5424.SDParam{Name: "error", Value: err.Error()})
	}
	if err := dev.CallSubscribe(local, remote); err != nil {
		_ = log.Warn("subscribe call failed", rfc5424.SDParam{Name: "error", Value: err.Error()})
	}

	quit := utils.GetQuitChannel()
	select {
	case <-quit:
		cconn.Close()
		<-runDone
	case <-runDone:
	}
	return nil
}

func printMeasurement(feat *device.Feature) {
	fn, ok := feat.Functions[model.FunctionMeasurementData]
	if !ok || fn.Value == nil {
		return
	}
	md, ok := fn.Value.(*model.MeasurementData)
	if !ok {
		return
	}
	for _, e := range md.MeasurementListData {
		if e.Value == nil {
			continue
		}
		fmt.Printf("[measurement] type=%s value=%.2f\n", strOrEmpty(e.MeasurementType), *e.Value)
	}
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func u32p(v uint32) *uint32 { return &v }
func strp(s string) *string { return &s }
