package nodefile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/uu-core/oqpsk/pkg/protocol"
)

var ErrUnknownNode = errors.New("unknown node")

// Nodefile maps node names to 802.15.4 addresses. Each line holds a name, a
// PAN id and a short address separated by single spaces; numbers take Go
// literal syntax, so 0xABCD and 43981 are the same address.
type Nodefile struct {
	Nodes map[string]Node
}

func NewNodefile(name string) (*Nodefile, error) {
	log.Printf("[DEBUG] Loading nodefile: %s", name)
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("unable to open nodefile %s: %v", name, err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = ' '
	r.Comment = '#'
	r.FieldsPerRecord = 3
	recs, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to read nodefile %s: %v", name, err)
	}
	ret := &Nodefile{
		Nodes: make(map[string]Node),
	}
	for i, rec := range recs {
		n, err := parseNode(rec[0], rec[1], rec[2])
		if err != nil {
			return nil, fmt.Errorf("nodefile %s record %d: %w", name, i+1, err)
		}
		ret.Nodes[n.Name] = n
	}
	return ret, nil
}

// Lookup resolves s as a node name or, failing that, as a literal "pan:addr"
// pair.
func (nf *Nodefile) Lookup(s string) (Node, error) {
	if nf != nil {
		if n, ok := nf.Nodes[s]; ok {
			return n, nil
		}
	}
	return ParseNode(s)
}

// ParseNode parses a literal "pan:addr" pair such as 0x4444:0xABCD.
func ParseNode(s string) (Node, error) {
	pan, addr, ok := strings.Cut(s, ":")
	if !ok {
		return Node{}, fmt.Errorf("%w: %q", ErrUnknownNode, s)
	}
	return parseNode(s, pan, addr)
}

func parseNode(name, pan, addr string) (Node, error) {
	p, err := strconv.ParseUint(pan, 0, 16)
	if err != nil {
		return Node{}, fmt.Errorf("bad PAN id %q for %s: %w", pan, name, err)
	}
	a, err := strconv.ParseUint(addr, 0, 16)
	if err != nil {
		return Node{}, fmt.Errorf("bad short address %q for %s: %w", addr, name, err)
	}
	return Node{
		Name: name,
		PAN:  protocol.PANID(p),
		Addr: protocol.ShortAddress(a),
	}, nil
}

type Node struct {
	Name string
	PAN  protocol.PANID
	Addr protocol.ShortAddress
}

func (n Node) String() string {
	return fmt.Sprintf("%s (%04x/%04x)", n.Name, uint16(n.PAN), uint16(n.Addr))
}
