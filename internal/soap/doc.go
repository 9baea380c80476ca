// Package soap builds and parses the SOAP-style envelopes used by the
// WeMo device control protocol.
//
// WeMo devices expose a UPnP-flavored control interface: every action is an
// HTTP POST of an XML envelope, and every reply is an envelope wrapping an
// "<Action>Response" element. The dialect is loose - devices answer with or
// without namespace prefixes, wrap values in single-field elements, and
// acknowledge some actions with an empty body - so the parser here is
// deliberately tolerant.
//
// # Building Requests
//
//	body := soap.BuildEnvelope("SetBinaryState",
//	    "urn:Belkin:service:basicevent:1",
//	    "<BinaryState>1</BinaryState>")
//
// # Parsing Responses
//
//	el, err := soap.ParseResponse("GetBinaryState", raw)
//	if err != nil {
//	    // structurally broken envelope
//	}
//	state := el.Int("BinaryState", 0)
//
// A missing "<Action>Response" element is not an error: many actions reply
// with a bare acknowledgement envelope, and ParseResponse returns a nil
// element for those. A missing envelope root or body is always an error.
//
// # Faults
//
// When the HTTP layer reports a non-success status, ParseFault extracts the
// structured UPnP fault (error code plus description) if one is present.
package soap
