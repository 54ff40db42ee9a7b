// Package dataset loads molecule files and turns them into the
// teacher-forced partial-graph fragments the engine trains on.
package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/turtacn/MolForge-Engine/pkg/errors"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

// Molecule is one parsed structure: element symbols with coordinates in
// ångström. Species indices are resolved separately against the configured
// element vocabulary.
type Molecule struct {
	Symbols   []string
	Positions []fragment.Vec3
}

// NumAtoms returns the atom count.
func (m *Molecule) NumAtoms() int { return len(m.Symbols) }

// Species maps the molecule's symbols through the element vocabulary,
// in vocabulary order.
func (m *Molecule) Species(elements []string) ([]int, error) {
	index := make(map[string]int, len(elements))
	for i, sym := range elements {
		index[sym] = i
	}
	out := make([]int, len(m.Symbols))
	for i, sym := range m.Symbols {
		idx, ok := index[sym]
		if !ok {
			return nil, errors.Newf(errors.CodeDataUnknownElement,
				"element %q is not in the vocabulary %v", sym, elements)
		}
		out[i] = idx
	}
	return out, nil
}

// ParseXYZ reads one or more structures in XYZ format: an atom-count line, a
// comment line, then one "Symbol x y z" line per atom, repeated until EOF.
func ParseXYZ(r io.Reader) ([]*Molecule, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var mols []*Molecule
	line := 0
	for sc.Scan() {
		line++
		head := strings.TrimSpace(sc.Text())
		if head == "" {
			continue
		}
		count, err := strconv.Atoi(head)
		if err != nil || count <= 0 {
			return nil, errors.Newf(errors.CodeDataParseFailed,
				"line %d: expected atom count, got %q", line, head)
		}
		if !sc.Scan() {
			return nil, errors.Newf(errors.CodeDataParseFailed,
				"line %d: missing comment line", line)
		}
		line++

		mol := &Molecule{
			Symbols:   make([]string, 0, count),
			Positions: make([]fragment.Vec3, 0, count),
		}
		for i := 0; i < count; i++ {
			if !sc.Scan() {
				return nil, errors.Newf(errors.CodeDataParseFailed,
					"line %d: expected %d atom lines, got %d", line, count, i)
			}
			line++
			fields := strings.Fields(sc.Text())
			if len(fields) < 4 {
				return nil, errors.Newf(errors.CodeDataParseFailed,
					"line %d: expected \"Symbol x y z\", got %q", line, sc.Text())
			}
			x, errX := strconv.ParseFloat(fields[1], 64)
			y, errY := strconv.ParseFloat(fields[2], 64)
			z, errZ := strconv.ParseFloat(fields[3], 64)
			if errX != nil || errY != nil || errZ != nil {
				return nil, errors.Newf(errors.CodeDataParseFailed,
					"line %d: invalid coordinates in %q", line, sc.Text())
			}
			mol.Symbols = append(mol.Symbols, fields[0])
			mol.Positions = append(mol.Positions, fragment.Vec3{X: x, Y: y, Z: z})
		}
		mols = append(mols, mol)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDataParseFailed, "reading xyz input")
	}
	if len(mols) == 0 {
		return nil, errors.New(errors.CodeDataParseFailed, "no structures found in xyz input")
	}
	return mols, nil
}

// LoadXYZFile parses every structure in the file at path.
func LoadXYZFile(path string) ([]*Molecule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDataParseFailed, "opening xyz file")
	}
	defer f.Close()
	return ParseXYZ(f)
}

// WriteXYZ appends one structure to w in XYZ format: an atom count line, a
// comment line, then one "Symbol x y z" line per atom.
func WriteXYZ(w io.Writer, symbols []string, positions []fragment.Vec3, comment string) error {
	if len(symbols) != len(positions) {
		return errors.Newf(errors.CodeDataParseFailed,
			"cannot write structure with %d symbols and %d positions",
			len(symbols), len(positions))
	}
	if _, err := fmt.Fprintf(w, "%d\n%s\n", len(symbols), comment); err != nil {
		return err
	}
	for i, sym := range symbols {
		p := positions[i]
		if _, err := fmt.Fprintf(w, "%s %.6f %.6f %.6f\n", sym, p.X, p.Y, p.Z); err != nil {
			return err
		}
	}
	return nil
}
