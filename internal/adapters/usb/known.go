package usb

import (
	"fmt"

	"github.com/bft-labs/sigcap/internal/ports"
)

// model is one supported USB instrument.
type model struct {
	VendorID  uint16
	ProductID uint16
	Vendor    string
	Model     string
	Logic     int
	Analog    []string
}

// family groups the models served by one driver.
type family struct {
	Name     string
	LongName string
	Models   []model
}

var families = []family{
	{
		Name:     "hantek-4032l",
		LongName: "Hantek 4032L",
		Models: []model{
			{VendorID: 0x04b5, ProductID: 0x4032, Vendor: "Hantek", Model: "4032L", Logic: 32},
		},
	},
	{
		Name:     "kingst-la2016",
		LongName: "Kingst LA2016",
		Models: []model{
			{VendorID: 0x77a1, ProductID: 0x01a2, Vendor: "Kingst", Model: "LA2016", Logic: 16},
		},
	},
	{
		Name:     "sysclk-lwla",
		LongName: "SysClk LWLA series",
		Models: []model{
			{VendorID: 0x2961, ProductID: 0x6688, Vendor: "SysClk", Model: "LWLA1016", Logic: 16},
			{VendorID: 0x2961, ProductID: 0x6689, Vendor: "SysClk", Model: "LWLA1034", Logic: 34},
		},
	},
	{
		Name:     "sysclk-sla5032",
		LongName: "SysClk SLA5032",
		Models: []model{
			{VendorID: 0x2961, ProductID: 0x66b0, Vendor: "SysClk", Model: "SLA5032", Logic: 32},
		},
	},
	{
		Name:     "kecheng-kc-330b",
		LongName: "Kecheng KC-330B",
		Models: []model{
			{VendorID: 0x1041, ProductID: 0x8101, Vendor: "Kecheng", Model: "KC-330B", Analog: []string{"SPL"}},
		},
	},
}

// classify returns the model matching vid:pid within f.
func (f family) classify(vid, pid uint16) (model, bool) {
	for _, m := range f.Models {
		if m.VendorID == vid && m.ProductID == pid {
			return m, true
		}
	}
	return model{}, false
}

// channels builds the channel list of m, allocating identities with next.
func (m model) channels(next func() uint64) []*ports.ChannelDescriptor {
	var out []*ports.ChannelDescriptor
	for i := 0; i < m.Logic; i++ {
		out = append(out, &ports.ChannelDescriptor{
			ID: next(), Index: i, Name: fmt.Sprintf("D%d", i), Type: ports.ChannelLogic, Enabled: true,
		})
	}
	for i, name := range m.Analog {
		out = append(out, &ports.ChannelDescriptor{
			ID: next(), Index: m.Logic + i, Name: name, Type: ports.ChannelAnalog, Enabled: true,
		})
	}
	return out
}
