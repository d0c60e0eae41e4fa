package main

import (
	"context"
	"flag"
	"log"
	"os"
	"runtime/pprof"
	"sync"

	"github.com/lintang-b-s/chroute/pkg/config"
	"github.com/lintang-b-s/chroute/pkg/contractor"
	"github.com/lintang-b-s/chroute/pkg/datastructure"
	"github.com/lintang-b-s/chroute/pkg/expander"
	"github.com/lintang-b-s/chroute/pkg/kv"
	"github.com/lintang-b-s/chroute/pkg/osmparser"
	"github.com/lintang-b-s/chroute/pkg/storage"

	"github.com/dgraph-io/badger/v4"
)

var (
	mapFile      = flag.String("f", "solo_jogja.osm.pbf", "openstreetmap pbf file for the road network graph")
	configFile   = flag.String("config", "", "optional yaml config with contraction tunables")
	edgeFile     = flag.String("edges", "./contracted_edges.bin", "contracted edge file output")
	ebgNodeFile  = flag.String("ebg-nodes", "./edge_based_nodes.bin", "edge-based node list output")
	ebgEdgeFile  = flag.String("ebg-edges", "./edge_based_edges.bin", "edge-based edge list output")
	snapshotFile = flag.String("snapshot", "./graph.snapshot", "engine snapshot output")
	kvDir        = flag.String("kvdir", "./chroute-kv", "badger directory for the street index")
	cpuprofile   = flag.String("cpuprofile", "", "write cpu profile to file")
)

func main() {
	flag.Parse()
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	cfg, err := config.Read(*configFile)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("reading osm file %s", *mapFile)
	parser := osmparser.NewOsmParser()
	parsed, err := parser.Parse(*mapFile)
	if err != nil {
		log.Fatal(err)
	}

	factory, err := expander.NewEdgeBasedGraphFactory(len(parsed.Nodes), parsed.Edges,
		parsed.Restrictions, parsed.Nodes)
	if err != nil {
		log.Fatal(err)
	}
	if err := factory.Run(); err != nil {
		log.Fatal(err)
	}
	edgeBasedNodes := factory.GetEdgeBasedNodes()
	edgeBasedEdges := factory.GetEdgeBasedEdges()
	numEdgeBasedNodes := factory.NumEdgeBasedNodes()

	if err := writeEdgeBasedFiles(edgeBasedNodes, edgeBasedEdges); err != nil {
		log.Fatal(err)
	}

	// street index build runs next to the contraction
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := badger.Open(badger.DefaultOptions(*kvDir))
	if err != nil {
		log.Fatal(err)
	}
	kvDB := kv.NewKVDB(db)
	defer kvDB.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := kvDB.BuildH3IndexedStreets(ctx, edgeBasedNodes); err != nil {
			log.Printf("error building street index: %v", err)
		}
	}()

	c, err := contractor.NewContractor(numEdgeBasedNodes, edgeBasedEdges, cfg.ContractorOptions())
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	if err := c.Run(); err != nil {
		log.Fatal(err)
	}

	log.Printf("writing contracted edge file %s", *edgeFile)
	out, err := os.Create(*edgeFile)
	if err != nil {
		log.Fatal(err)
	}
	if err := c.WriteContractedEdges(out); err != nil {
		out.Close()
		log.Fatal(err)
	}
	out.Close()

	contracted, err := c.GetEdges()
	if err != nil {
		log.Fatal(err)
	}

	names := make([]string, len(parsed.NameIDMap.StrMap))
	for name, id := range parsed.NameIDMap.StrMap {
		names[id] = name
	}

	log.Printf("saving engine snapshot %s", *snapshotFile)
	err = storage.SaveSnapshot(*snapshotFile, &storage.GraphSnapshot{
		NumNodes: int32(numEdgeBasedNodes),
		Edges:    contracted,
		Nodes:    edgeBasedNodes,
		Names:    names,
	})
	if err != nil {
		log.Fatal(err)
	}

	wg.Wait()
	log.Printf("contraction hierarchies ready")
}

func writeEdgeBasedFiles(nodes []datastructure.EdgeBasedNode, edges []datastructure.EdgeBasedEdge) error {
	nodeOut, err := os.Create(*ebgNodeFile)
	if err != nil {
		return err
	}
	defer nodeOut.Close()
	if err := storage.WriteEdgeBasedNodes(nodeOut, nodes); err != nil {
		return err
	}

	edgeOut, err := os.Create(*ebgEdgeFile)
	if err != nil {
		return err
	}
	defer edgeOut.Close()
	return storage.WriteEdgeBasedEdges(edgeOut, edges)
}
