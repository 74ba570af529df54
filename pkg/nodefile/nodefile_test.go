package nodefile

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewNodefile(t *testing.T) {
	type args struct {
		fileName string
		nodeName string
	}
	tests := []struct {
		name    string
		args    args
		want    Node
		wantErr bool
	}{
		{"Bad file", args{"testdata/nodes.txtX", ""}, Node{}, true},
		{"Bad address", args{"testdata/bad_nodes.txt", ""}, Node{}, true},
		{"tag-1", args{"testdata/nodes.txt", "tag-1"}, Node{"tag-1", 0x2222, 0x1234}, false},
		{"receiver", args{"testdata/nodes.txt", "receiver"}, Node{"receiver", 0x4444, 0xABCD}, false},
		{"decimal", args{"testdata/nodes.txt", "decimal"}, Node{"decimal", 0x4444, 0xABCD}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nf, err := NewNodefile(tt.args.fileName)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewNodefile() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if nf != nil {
				got := nf.Nodes[tt.args.nodeName]
				if !reflect.DeepEqual(got, tt.want) {
					t.Errorf("NewNodefile() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestLookup(t *testing.T) {
	nf, err := NewNodefile("testdata/nodes.txt")
	if err != nil {
		t.Fatalf("NewNodefile() error = %v", err)
	}
	tests := []struct {
		name    string
		nf      *Nodefile
		s       string
		want    Node
		wantErr error
	}{
		{"by name", nf, "broadcast", Node{"broadcast", 0xFFFF, 0xFFFF}, nil},
		{"literal", nf, "0x1:0x2", Node{"0x1:0x2", 1, 2}, nil},
		{"literal without nodefile", nil, "0x4444:0xABCD", Node{"0x4444:0xABCD", 0x4444, 0xABCD}, nil},
		{"unknown", nf, "nobody", Node{}, ErrUnknownNode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.nf.Lookup(tt.s)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Lookup() error = %v, want %v", err, tt.wantErr)
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Lookup() = %v, want %v", got, tt.want)
			}
		})
	}
	if _, err := nf.Lookup("0x1:0x10000"); err == nil {
		t.Errorf("Lookup() of out of range address error = nil")
	}
}
