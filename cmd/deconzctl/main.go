// Command deconzctl is a small operator CLI for a deCONZ stick,
// wrapping the go-deconz client library.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"

	"github.com/deconz-community/go-deconz/deconz"
)

var deviceFlag = &cli.StringFlag{
	Name:     "device",
	Aliases:  []string{"d"},
	Usage:    "serial device path",
	Value:    "/dev/ttyUSB0",
	EnvVars:  []string{"DECONZ_DEVICE"},
	Required: false,
}

func main() {
	app := &cli.App{
		Name:  "deconzctl",
		Usage: "operate a deCONZ (ConBee/RaspBee) Zigbee coordinator stick",
		Flags: []cli.Flag{deviceFlag},
		Commands: []*cli.Command{
			stateCommand,
			paramsCommand,
			networkCommand,
			subscribeCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func connect(c *cli.Context) (*deconz.Client, deconz.Handle, error) {
	return deconz.Start(deconz.Config{
		Device: c.String("device"),
		Logger: log.Default(),
	})
}

var stateCommand = &cli.Command{
	Name:  "state",
	Usage: "read the stick's current device state",
	Action: func(c *cli.Context) error {
		client, handle, err := connect(c)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var resp deconz.DeviceStateResponse
		if err := deconz.Do(ctx, handle, deconz.DeviceStateRequest{}, &resp); err != nil {
			return err
		}
		fmt.Printf("network: %s\n", resp.State.NetworkState)
		fmt.Printf("aps data confirm pending: %t\n", resp.State.ApsDataConfirmPending)
		fmt.Printf("aps data indication pending: %t\n", resp.State.ApsDataIndicationPending)
		fmt.Printf("configuration changed: %t\n", resp.State.ConfigurationChanged)
		fmt.Printf("aps data request free slots: %t\n", resp.State.ApsDataRequestFreeSlots)
		return nil
	},
}

var networkCommand = &cli.Command{
	Name:  "network",
	Usage: "change the stick's network connection state",
	Subcommands: []*cli.Command{
		{
			Name:   "online",
			Action: networkChangeAction(deconz.NetworkConnected),
		},
		{
			Name:   "offline",
			Action: networkChangeAction(deconz.NetworkOffline),
		},
	},
}

func networkChangeAction(state deconz.NetworkState) cli.ActionFunc {
	return func(c *cli.Context) error {
		client, handle, err := connect(c)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var resp deconz.ChangeNetworkStateResponse
		return deconz.Do(ctx, handle, deconz.ChangeNetworkStateRequest{State: state}, &resp)
	}
}

var paramsCommand = &cli.Command{
	Name:  "params",
	Usage: "read or write a stick configuration parameter",
	Subcommands: []*cli.Command{
		{
			Name:      "read",
			ArgsUsage: "<parameter-name>",
			Action: func(c *cli.Context) error {
				id, err := parseParameterName(c.Args().First())
				if err != nil {
					return err
				}

				client, handle, err := connect(c)
				if err != nil {
					return err
				}
				defer client.Close()

				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				var resp deconz.ReadParameterResponse
				if err := deconz.Do(ctx, handle, deconz.ReadParameterRequest{ID: id}, &resp); err != nil {
					return err
				}
				fmt.Printf("%s = %+v\n", resp.Value.ID, resp.Value)
				return nil
			},
		},
		{
			Name:      "write",
			ArgsUsage: "<parameter-name> <value>",
			Action: func(c *cli.Context) error {
				id, err := parseParameterName(c.Args().Get(0))
				if err != nil {
					return err
				}
				value, err := parseParameterValue(id, c.Args().Get(1))
				if err != nil {
					return err
				}

				client, handle, err := connect(c)
				if err != nil {
					return err
				}
				defer client.Close()

				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				var resp deconz.WriteParameterResponse
				return deconz.Do(ctx, handle, deconz.WriteParameterRequest{Value: value}, &resp)
			},
		},
	},
}

var subscribeCommand = &cli.Command{
	Name:  "subscribe",
	Usage: "print incoming APS data indications until interrupted",
	Action: func(c *cli.Context) error {
		client, handle, err := connect(c)
		if err != nil {
			return err
		}
		defer client.Close()

		ch, cancel := handle.SubscribeAPSDataIndication()
		defer cancel()

		for ind := range ch {
			fmt.Printf("cluster=0x%04x profile=0x%04x rssi=%d data=%x\n",
				ind.ClusterID, ind.ProfileID, ind.ReceivedSignalStrength, ind.ApplicationServiceData)
		}
		return nil
	},
}

func parseParameterName(name string) (deconz.ParameterID, error) {
	for id := deconz.ParameterID(0); id < 0xFF; id++ {
		if id.String() == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("deconzctl: unknown parameter %q", name)
}

func parseParameterValue(id deconz.ParameterID, raw string) (deconz.ParameterValue, error) {
	switch id {
	case deconz.ParamMACAddress, deconz.ParamAPSExtendedPANID, deconz.ParamTrustCenterAddress, deconz.ParamNetworkFrameCounter:
		v, err := strconv.ParseUint(raw, 0, 64)
		if err != nil {
			return deconz.ParameterValue{}, err
		}
		return deconz.ParameterValue{ID: id, U64: v}, nil
	case deconz.ParamNetworkPANID, deconz.ParamNetworkAddress, deconz.ParamProtocolVersion:
		v, err := strconv.ParseUint(raw, 0, 16)
		if err != nil {
			return deconz.ParameterValue{}, err
		}
		return deconz.ParameterValue{ID: id, U16: uint16(v)}, nil
	case deconz.ParamChannelMask, deconz.ParamWatchdogTTL:
		v, err := strconv.ParseUint(raw, 0, 32)
		if err != nil {
			return deconz.ParameterValue{}, err
		}
		return deconz.ParameterValue{ID: id, U32: uint32(v)}, nil
	case deconz.ParamAPSDesignatedCoord, deconz.ParamSecurityMode, deconz.ParamPredefinedNetworkPANID,
		deconz.ParamCurrentChannel, deconz.ParamNetworkUpdateID:
		v, err := strconv.ParseUint(raw, 0, 8)
		if err != nil {
			return deconz.ParameterValue{}, err
		}
		return deconz.ParameterValue{ID: id, U8: byte(v)}, nil
	default:
		return deconz.ParameterValue{}, fmt.Errorf("deconzctl: writing %s is not supported", id)
	}
}
