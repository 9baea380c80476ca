// Package provision joins a factory-reset WeMo device to a home WiFi
// network.
//
// A reset device runs its own access point on a fixed subnet (10.22.22.0/24)
// and accepts a ConnectHomeNetwork action on a fixed port. The WiFi
// passphrase in that request is not sent in the clear: it is encrypted with
// a key derived from the device's own MAC address and serial number, using
// one of three legacy derivation variants that must match the firmware
// bit-for-bit. See Method and Encrypt for the exact schemes.
//
// The usual flow:
//
//	target, err := provision.DetectSetupTarget(ctx)
//	if err != nil || !target.OnSetupNetwork {
//	    // join the device's WiFi hotspot first
//	}
//
//	p := provision.NewProvisioner()
//	result, err := p.Send(provision.Request{
//	    SSID:       "HomeNet",
//	    Passphrase: "hunter22",
//	    Auth:       provision.AuthWPA2,
//	    Encryption: provision.CipherAES,
//	    MAC:        target.Device.MAC,
//	    Serial:     target.Device.Serial,
//	    Method:     provision.Method2,
//	})
//
// Send retries exactly twice after a failed first attempt and keeps every
// attempt's status and raw response in the result, because when pairing
// fails the operator needs the wire-level picture.
package provision
