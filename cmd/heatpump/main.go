/*************************************************************************
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command heatpump is an example EEBUS node publishing measurement data
// (a single active-power entry) to whatever HEMS binds and
// subscribes to its Measurement feature, mirroring the reference heat pump
// example's periodic MPC publication loop.
package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/crewjam/rfc5424"
	"github.com/gorilla/websocket"
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

var configFile string

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "heatpump",
		Short: "Example EEBUS heat pump node publishing measurementData",
		RunE:  run,
	}
	root.Flags().StringVarP(&configFile, "config", "c", "", "path to node config file")
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
	if configFile == "" {
		fmt.Fprintln(os.Stderr, "missing --config")
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

	st, err := store.Open(nc.Global.State_Dir + "/heatpump.db")
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening state store: %v\n", err)
		os.Exit(-1)
	}
	defer st.Close()

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)

	deviceID, err := nc.EnsureDeviceUUID(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "assigning device identity: %v\n", err)
		os.Exit(-1)
	}
	dev := device.New("d:_i:" + deviceID.String())
	entity := dev.AddEntity([]uint32{0}, "Heat pump")
	feat := entity.AddFeature(0, "Measurement", "server",
		model.FunctionMeasurementData,
		model.FunctionNodeManagementBindingRequestCall,
		model.FunctionNodeManagementSubscriptionRequestCall,
		model.FunctionNodeManagementDetailedDiscoveryData,
		model.FunctionNodeManagementUseCaseData,
	)
	feat.Functions[model.FunctionMeasurementData].Value = &model.MeasurementData{}
	restorePersistedTables(dev, st)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", nc.Global.Listen_Port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "listening: %v\n", err)
		os.Exit(-1)
	}

	quit := utils.GetQuitChannel()
	stop := make(chan struct{})
	go publishLoop(dev, feat, stop)

	go func() {
		err := transport.ListenServer(ln, watcher.Current(), func(peerSki string) error {
			if peerSki != nc.Global.Remote_SKI {
				return fmt.Errorf("unexpected remote SKI %s", peerSki)
			}
			return nil
		}, func(wsConn *websocket.Conn, peerSki string) {
			reg.Reconnects.Inc()
			handleConn(dev, log, wsConn, watcher.Current().Ski, peerSki)
		})
		if err != nil {
			_ = log.Error("listener exited", rfc5424.SDParam{Name: "error", Value: err.Error()})
		}
	}()

	<-quit
	close(stop)
	ln.Close()
	return nil
}

func handleConn(dev *device.Device, log *shiplog.Logger, wsConn *websocket.Conn, localSki, peerSki string) {
	sconn := ship.NewServer(wsConn, localSki, peerSki, log, nil)
	dev.Send = func(raw []byte) error { return sconn.Send(raw) }
	sconn.SetSpineHandler(func(payload json.RawMessage) {
		dg, err := model.DecodeDatagram(payload)
		if err != nil {
			_ = log.Warn("dropping malformed spine datagram", rfc5424.SDParam{Name: "error", Value: err.Error()})
			return
		}
		dev.Dispatch(dg)
	})
	sconn.Run()
}

func restorePersistedTables(dev *device.Device, st *store.Store) {
	if bindings, err := st.LoadBindings(); err == nil {
		for id, entry := range bindings {
			_ = dev.Bindings.Commit(entry)
			_ = id
		}
	}
	if subs, err := st.LoadSubscriptions(); err == nil {
		for id, entry := range subs {
			_ = dev.Subscriptions.Commit(entry)
			_ = id
		}
	}
}

// publishLoop mirrors the reference example's random-walk power signal: it
// updates the Measurement feature's local value and notifies subscribers
// once a second until quit fires.
func publishLoop(dev *device.Device, feat *device.Feature, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	powerW := int32(1500)
	src := &model.FeatureAddress{Device: &dev.Address, Entity: []*uint32{u32p(0)}, Feature: u32p(0)}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			delta := int32(rand.Intn(501) - 250)
			powerW = clampI32(powerW+delta, 0, 5000)

			fn := feat.Functions[model.FunctionMeasurementData]
			fn.Value = &model.MeasurementData{
				MeasurementListData: []*model.MeasurementEntry{
					{MeasurementID: u32p(0), MeasurementType: strp("power"), Value: f64p(float64(powerW) * 100)},
				},
			}
			_ = dev.Notify(feat, src, model.FunctionMeasurementData)
		}
	}
}

func clampI32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func u32p(v uint32) *uint32    { return &v }
func strp(s string) *string    { return &s }
func f64p(v float64) *float64  { return &v }
