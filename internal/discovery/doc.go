// Package discovery advertises chippy servers over mDNS and finds them.
//
// A running server registers itself as a _chippy._tcp service in the
// local. domain with a version TXT record. Transceiver installers and the
// status command use Scanner to locate servers without knowing their
// addresses.
//
//	adv, err := discovery.Advertise("chippy-gate-1", 44999, version.Version)
//	if err != nil {
//	    return err
//	}
//	defer adv.Shutdown()
package discovery
