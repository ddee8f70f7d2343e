package sim

import "github.com/bft-labs/sigcap/internal/ports"

var inputFormats = [][2]string{
	{"binary", "Raw binary logic data"},
	{"csv", "Comma-separated values"},
	{"vcd", "Value Change Dump data"},
	{"wav", "WAV file"},
}

var outputFormats = [][2]string{
	{"bits", "ASCII rendering using 0/1"},
	{"hex", "Hexadecimal digits"},
	{"csv", "Comma-separated values"},
	{"analog", "ASCII analog data values and units"},
	{"vcd", "Value Change Dump data"},
	{"binary", "Raw binary logic data"},
}

func (b *Backend) formatTable(names [][2]string) []*ports.FormatDescriptor {
	table := make([]*ports.FormatDescriptor, 0, len(names)+1)
	for _, n := range names {
		table = append(table, &ports.FormatDescriptor{ID: b.allocID(), Name: n[0], Description: n[1]})
	}
	return append(table, nil)
}

// InputFormats returns the nil-terminated input format table.
func (b *Backend) InputFormats() []*ports.FormatDescriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*ports.FormatDescriptor(nil), b.inputs...)
}

// OutputFormats returns the nil-terminated output format table.
func (b *Backend) OutputFormats() []*ports.FormatDescriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*ports.FormatDescriptor(nil), b.outputs...)
}
