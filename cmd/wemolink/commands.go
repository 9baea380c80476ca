package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/wemolink/internal/control"
	"github.com/muurk/wemolink/internal/discovery"
	"github.com/muurk/wemolink/internal/insight"
	"github.com/muurk/wemolink/internal/provision"
	"github.com/muurk/wemolink/internal/registry"
	"github.com/muurk/wemolink/internal/wizard/tui"
)

// Command flags
var (
	deviceHost  string
	devicePort  int
	scanTimeout int

	renameName string

	provSSID    string
	provAuth    string
	provCipher  string
	provChannel int
	provMethod  int
	provListAPs bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceHost, "device", "", "Device IP address (skips discovery)")
	rootCmd.PersistentFlags().IntVar(&devicePort, "port", 49153, "Device HTTP port")
	rootCmd.PersistentFlags().IntVar(&scanTimeout, "timeout", 5, "Discovery timeout in seconds")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(onCmd)
	rootCmd.AddCommand(offCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(insightCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(wizardCmd)
}

// scanCmd discovers devices on the network.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for WeMo devices on the network",
	Long: `Scan for WeMo devices using SSDP discovery.

This command multicasts a discovery query on every usable network interface,
collects responses, and displays all discovered devices with their names,
types and addresses. Discovered devices are remembered for later commands.`,
	Example: `  # Scan with the default 5-second window
  wemolink scan

  # Longer scan for lossy networks
  wemolink scan --timeout 15`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for WeMo devices (timeout: %ds)...\n\n", scanTimeout)

	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(scanTimeout) * time.Second
	result, err := scanner.Scan(context.Background())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(result.Devices) == 0 {
		fmt.Println("No devices found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure devices are powered on and on the same network")
		fmt.Println("  - Check that your firewall allows UDP port 1900 (SSDP)")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Use --device to specify an IP manually if discovery fails")
		return nil
	}

	fmt.Printf("Found %d device(s) in %s:\n\n", len(result.Devices), result.Duration.Round(time.Millisecond))
	for i, d := range result.Devices {
		fmt.Printf("%d. %s\n", i+1, d.Name)
		fmt.Printf("   Type:    %s\n", d.Type)
		fmt.Printf("   Address: %s:%d\n", d.Host, d.Port)
		fmt.Printf("   Serial:  %s\n", d.Serial)
		fmt.Println()
	}

	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "warning: %v\n", e)
	}

	if reg, err := registry.Load(); err == nil {
		for _, d := range result.Devices {
			reg.Remember(d)
		}
		if err := reg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save device registry: %v\n", err)
		}
	}

	return nil
}

// resolveDevice locates the device a control command should target: the
// --device flag when given, the single saved registry entry otherwise.
func resolveDevice(ctx context.Context) (*discovery.Device, error) {
	if deviceHost != "" {
		dev, err := discovery.Lookup(ctx, deviceHost, devicePort)
		if err != nil {
			return nil, fmt.Errorf("device at %s:%d did not answer: %w", deviceHost, devicePort, err)
		}
		if dev == nil {
			return nil, fmt.Errorf("host %s:%d did not identify as a WeMo device", deviceHost, devicePort)
		}
		return dev, nil
	}

	reg, err := registry.Load()
	if err != nil {
		return nil, err
	}
	if len(reg.Devices) == 1 {
		for _, saved := range reg.Devices {
			dev, err := discovery.Lookup(ctx, saved.Host, saved.Port)
			if err != nil {
				return nil, fmt.Errorf("saved device %q did not answer at %s:%d: %w",
					saved.DisplayName(), saved.Host, saved.Port, err)
			}
			if dev == nil {
				return nil, fmt.Errorf("host %s:%d no longer identifies as a WeMo device", saved.Host, saved.Port)
			}
			return dev, nil
		}
	}
	if len(reg.Devices) > 1 {
		var names []string
		for _, saved := range reg.Devices {
			names = append(names, fmt.Sprintf("%s (%s:%d)", saved.DisplayName(), saved.Host, saved.Port))
		}
		return nil, fmt.Errorf("multiple saved devices; pick one with --device:\n  %s",
			strings.Join(names, "\n  "))
	}
	return nil, fmt.Errorf("no device specified; run 'wemolink scan' first or pass --device")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a device's current state",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := resolveDevice(cmd.Context())
		if err != nil {
			return err
		}
		state, err := control.NewClient(dev).GetState()
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s) at %s:%d is %s\n", dev.Name, dev.Type, dev.Host, dev.Port, state)
		return nil
	},
}

var onCmd = &cobra.Command{
	Use:   "on",
	Short: "Switch a device on",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetState(cmd.Context(), true)
	},
}

var offCmd = &cobra.Command{
	Use:   "off",
	Short: "Switch a device off",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetState(cmd.Context(), false)
	},
}

func runSetState(ctx context.Context, on bool) error {
	dev, err := resolveDevice(ctx)
	if err != nil {
		return err
	}
	if err := control.NewClient(dev).SetState(on); err != nil {
		return err
	}
	word := "off"
	if on {
		word = "on"
	}
	fmt.Printf("%s is now %s\n", dev.Name, word)
	return nil
}

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle a device's power state",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := resolveDevice(cmd.Context())
		if err != nil {
			return err
		}
		state, err := control.NewClient(dev).Toggle()
		if err != nil {
			return err
		}
		fmt.Printf("%s is now %s\n", dev.Name, state)
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:     "rename",
	Short:   "Change a device's friendly name",
	Example: `  wemolink rename --name "Desk Lamp" --device 192.168.1.42`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if renameName == "" {
			return fmt.Errorf("--name is required")
		}
		dev, err := resolveDevice(cmd.Context())
		if err != nil {
			return err
		}
		if err := control.NewClient(dev).SetName(renameName); err != nil {
			return err
		}
		fmt.Printf("%s renamed to %q\n", dev.Name, renameName)
		return nil
	},
}

func init() {
	renameCmd.Flags().StringVar(&renameName, "name", "", "New friendly name")
}

var insightCmd = &cobra.Command{
	Use:   "insight",
	Short: "Show power telemetry from an Insight device",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := resolveDevice(cmd.Context())
		if err != nil {
			return err
		}
		if dev.Type != discovery.TypeInsight {
			return fmt.Errorf("%s is a %s, not an Insight device", dev.Name, dev.Type)
		}
		summary, err := control.NewInsightClient(dev).GetPowerSummary()
		if err != nil {
			return err
		}
		printSummary(dev.Name, summary)
		return nil
	},
}

func printSummary(name string, s insight.Summary) {
	state := "off"
	switch {
	case s.Standby:
		state = "standby"
	case s.On:
		state = "on"
	}
	fmt.Printf("%s: %s\n", name, state)
	fmt.Printf("  Current draw:    %.1f W\n", s.CurrentWatts)
	fmt.Printf("  On this session: %s\n", s.OnFor)
	fmt.Printf("  On today:        %s (%.3f kWh)\n", s.OnToday, s.TodayKWh)
	fmt.Printf("  On lifetime:     %s (%.3f kWh)\n", s.OnTotal, s.TotalKWh)
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Join a factory-reset device to a WiFi network",
	Long: `Provision a factory-reset WeMo device onto a home WiFi network.

Connect this computer to the device's setup WiFi hotspot first. The command
detects the setup network, encrypts the WiFi passphrase with the device's
own key material, and sends the join request. The passphrase is prompted
interactively and never echoed.`,
	Example: `  # Survey the networks the device can see
  wemolink provision --list-aps

  # Join the device to a WPA2 network
  wemolink provision --ssid HomeNet`,
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().StringVar(&provSSID, "ssid", "", "Target network SSID")
	provisionCmd.Flags().StringVar(&provAuth, "auth", "WPA2", "Auth mode (OPEN, WPA, WPA2)")
	provisionCmd.Flags().StringVar(&provCipher, "encrypt", "AES", "Cipher (NONE, TKIP, AES)")
	provisionCmd.Flags().IntVar(&provChannel, "channel", 0, "WiFi channel (0 = auto)")
	provisionCmd.Flags().IntVar(&provMethod, "method", 2, "Key-derivation method (1, 2 or 3)")
	provisionCmd.Flags().BoolVar(&provListAPs, "list-aps", false, "List networks the device can see and exit")
}

func runProvision(cmd *cobra.Command, args []string) error {
	target, err := provision.DetectSetupTarget(cmd.Context())
	if err != nil {
		return err
	}
	if !target.OnSetupNetwork {
		return fmt.Errorf("not on a device setup network (%s); join the device's WiFi hotspot first",
			provision.SetupSubnet)
	}
	dev := target.Device
	fmt.Printf("Setup device: %s (serial %s, MAC %s)\n\n", dev.Name, dev.Serial, dev.MAC)

	p := provision.NewProvisioner()

	if provListAPs {
		aps, err := p.GetApList()
		if err != nil {
			return err
		}
		if len(aps) == 0 {
			fmt.Println("The device reported no visible networks.")
			return nil
		}
		for _, ap := range aps {
			fmt.Printf("  %-32s ch %-3s %s\n", ap.SSID, ap.Channel, ap.Security)
		}
		return nil
	}

	if provSSID == "" {
		return fmt.Errorf("--ssid is required")
	}

	auth, cipherMode, err := parseAuthFlags(provAuth, provCipher)
	if err != nil {
		return err
	}

	passphrase := ""
	if auth != provision.AuthOpen {
		passphrase, err = promptPassphrase(fmt.Sprintf("Passphrase for %q: ", provSSID))
		if err != nil {
			return err
		}
	}

	result, err := p.Send(provision.Request{
		SSID:       provSSID,
		Passphrase: passphrase,
		Auth:       auth,
		Encryption: cipherMode,
		MAC:        dev.MAC,
		Serial:     dev.Serial,
		Channel:    provChannel,
		Method:     provision.Method(provMethod),
	})
	if err != nil {
		return err
	}

	if !result.Success {
		fmt.Println("Provisioning failed.")
		for i, a := range result.Attempts {
			fmt.Printf("  attempt %d: status=%d err=%v\n", i+1, a.Status, a.Err)
		}
		return fmt.Errorf("device did not accept the join request")
	}

	fmt.Printf("Pairing status: %s\n", result.PairingStatus)
	fmt.Println("The device should join the network within a minute.")
	return nil
}

func parseAuthFlags(auth, cipherMode string) (provision.AuthMode, provision.CipherMode, error) {
	var a provision.AuthMode
	switch strings.ToUpper(auth) {
	case "OPEN":
		a = provision.AuthOpen
	case "WPA":
		a = provision.AuthWPA
	case "WPA2":
		a = provision.AuthWPA2
	default:
		return 0, 0, fmt.Errorf("unknown auth mode %q (OPEN, WPA, WPA2)", auth)
	}

	var c provision.CipherMode
	switch strings.ToUpper(cipherMode) {
	case "NONE":
		c = provision.CipherNone
	case "TKIP":
		c = provision.CipherTKIP
	case "AES":
		c = provision.CipherAES
	default:
		return 0, 0, fmt.Errorf("unknown cipher %q (NONE, TKIP, AES)", cipherMode)
	}
	return a, c, nil
}

// promptPassphrase reads a passphrase without echoing it.
func promptPassphrase(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(raw), nil
}

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive device browser and control",
	RunE:  runWizard,
}

func runWizard(cmd *cobra.Command, args []string) error {
	return tui.Run(time.Duration(scanTimeout) * time.Second)
}
