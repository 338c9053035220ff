package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/annel0/blockbyte/internal/registry"
	"github.com/annel0/blockbyte/internal/storage"
	"github.com/annel0/blockbyte/internal/vec"
)

func main() {
	entities := flag.Bool("entities", true, "Print saved entities")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] chunkX,Y,Z.bws...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	regs := registry.DefaultRegistries()
	failed := false
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("❌ %s: %v", path, err)
			failed = true
			continue
		}
		fmt.Printf("=== %s (%d bytes)\n", path, len(data))
		if err := inspect(os.Stdout, data, regs, *entities); err != nil {
			log.Printf("❌ %s: %v", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// inspect печатает палитру, гистограмму блоков, контейнеры и сущности файла чанка
func inspect(w io.Writer, data []byte, regs *registry.Registries, withEntities bool) error {
	d, err := storage.DecodeChunk(data)
	if err != nil {
		return err
	}

	counts := make([]int, len(d.Palette))
	for _, pi := range d.Cells {
		counts[pi]++
	}

	fmt.Fprintf(w, "Palette (%d entries):\n", len(d.Palette))
	for i, id := range d.Palette {
		mark := ""
		if d.IsStateful(uint16(i)) {
			mark = "  [container]"
		}
		if _, err := regs.Blocks.StateFromString(id); err != nil {
			mark += "  [unknown, loads as air]"
		}
		fmt.Fprintf(w, "  %3d  %s%s\n", i, id, mark)
	}

	order := make([]int, len(d.Palette))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return counts[order[a]] > counts[order[b]] })

	fmt.Fprintf(w, "Blocks:\n")
	for _, pi := range order {
		if counts[pi] == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-40s %6d %6.2f%%\n", d.Palette[pi], counts[pi], float64(counts[pi])*100/vec.ChunkVolume)
	}

	if len(d.Payloads) > 0 {
		cells := make([]int, 0, len(d.Payloads))
		for cell := range d.Payloads {
			cells = append(cells, cell)
		}
		sort.Ints(cells)

		fmt.Fprintf(w, "Containers (%d):\n", len(cells))
		for _, cell := range cells {
			items := 0
			for _, s := range d.Payloads[cell] {
				if s != nil {
					items += int(s.Count)
				}
			}
			fmt.Fprintf(w, "  cell %5d %-30s slots=%d items=%d\n", cell, d.CellID(cell), len(d.Payloads[cell]), items)
		}
	}

	if withEntities && len(d.Entities) > 0 {
		fmt.Fprintf(w, "Entities (%d):\n", len(d.Entities))
		for _, e := range d.Entities {
			fmt.Fprintf(w, "  %-20s pos=(%.2f, %.2f, %.2f) rot=%.1f\n",
				e.Type, e.Position.X, e.Position.Y, e.Position.Z, e.Rotation)
		}
	}
	return nil
}
