package pipeline

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"authdns/internal/model"
)

// caaLineRegex parses the textual CAA RDATA convention used by this
// store: "<flag> <tag> \"<value>\"".
var caaLineRegex = regexp.MustCompile(`^(\d+)\s+(\S+)\s+"(.*)"$`)

// encodeValue converts one RecordValue to its wire RR for kind, under
// qname/ttl: A/AAAA parse literal addresses, MX parses
// "<pref> <exchange>", TXT splits into <=255-byte chunks,
// CAA uses textual RDATA parsing, CNAME/PTR parse as names. Returns an
// error on malformed input; encodeValues drops such a value without
// logging it.
func encodeValue(qname string, ttl uint32, kind model.RecordType, value model.RecordValue) (dns.RR, error) {
	hdr := func(rrtype uint16) dns.RR_Header {
		return dns.RR_Header{Name: qname, Rrtype: rrtype, Class: dns.ClassINET, Ttl: ttl}
	}

	switch kind {
	case model.TypeA:
		ip := net.ParseIP(string(value)).To4()
		if ip == nil {
			return nil, fmt.Errorf("pipeline: invalid A value %q", value)
		}
		return &dns.A{Hdr: hdr(dns.TypeA), A: ip}, nil

	case model.TypeAAAA:
		ip := net.ParseIP(string(value))
		if ip == nil || ip.To4() != nil {
			return nil, fmt.Errorf("pipeline: invalid AAAA value %q", value)
		}
		return &dns.AAAA{Hdr: hdr(dns.TypeAAAA), AAAA: ip}, nil

	case model.TypeCNAME:
		return &dns.CNAME{Hdr: hdr(dns.TypeCNAME), Target: dns.Fqdn(string(value))}, nil

	case model.TypePTR:
		return &dns.PTR{Hdr: hdr(dns.TypePTR), Ptr: dns.Fqdn(string(value))}, nil

	case model.TypeMX:
		parts := strings.Fields(string(value))
		if len(parts) != 2 {
			return nil, fmt.Errorf("pipeline: invalid MX value %q", value)
		}
		pref, err := strconv.ParseUint(parts[0], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("pipeline: invalid MX preference %q: %w", value, err)
		}
		return &dns.MX{Hdr: hdr(dns.TypeMX), Preference: uint16(pref), Mx: dns.Fqdn(parts[1])}, nil

	case model.TypeTXT:
		return &dns.TXT{Hdr: hdr(dns.TypeTXT), Txt: chunkTXT(string(value))}, nil

	case model.TypeCAA:
		m := caaLineRegex.FindStringSubmatch(string(value))
		if m == nil {
			return nil, fmt.Errorf("pipeline: invalid CAA value %q", value)
		}
		flag, err := strconv.ParseUint(m[1], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("pipeline: invalid CAA flag %q: %w", value, err)
		}
		return &dns.CAA{Hdr: hdr(dns.TypeCAA), Flag: uint8(flag), Tag: m[2], Value: m[3]}, nil

	default:
		return nil, fmt.Errorf("pipeline: unsupported record type %q", kind)
	}
}

// chunkTXT splits a TXT value into RFC 1035 character-strings of at most
// model.DataTXTChunkMaximum bytes each.
func chunkTXT(s string) []string {
	if len(s) <= model.DataTXTChunkMaximum {
		return []string{s}
	}
	var chunks []string
	for len(s) > 0 {
		n := model.DataTXTChunkMaximum
		if n > len(s) {
			n = len(s)
		}
		chunks = append(chunks, s[:n])
		s = s[n:]
	}
	return chunks
}

// dnsTypeFor maps a model.RecordType to its miekg/dns numeric type.
func dnsTypeFor(kind model.RecordType) uint16 {
	switch kind {
	case model.TypeA:
		return dns.TypeA
	case model.TypeAAAA:
		return dns.TypeAAAA
	case model.TypeCNAME:
		return dns.TypeCNAME
	case model.TypeMX:
		return dns.TypeMX
	case model.TypeTXT:
		return dns.TypeTXT
	case model.TypeCAA:
		return dns.TypeCAA
	case model.TypePTR:
		return dns.TypePTR
	default:
		return dns.TypeNone
	}
}

// recordTypeFor is the inverse of dnsTypeFor, used to map an incoming
// question's qtype to the model's closed RecordType set. Returns false
// for any wire type outside that set (e.g. SOA, NS, ANY).
func recordTypeFor(qtype uint16) (model.RecordType, bool) {
	switch qtype {
	case dns.TypeA:
		return model.TypeA, true
	case dns.TypeAAAA:
		return model.TypeAAAA, true
	case dns.TypeCNAME:
		return model.TypeCNAME, true
	case dns.TypeMX:
		return model.TypeMX, true
	case dns.TypeTXT:
		return model.TypeTXT, true
	case dns.TypeCAA:
		return model.TypeCAA, true
	case dns.TypePTR:
		return model.TypePTR, true
	default:
		return "", false
	}
}
