package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/lintang-b-s/chroute/pkg/config"
	"github.com/lintang-b-s/chroute/pkg/datastructure"
	"github.com/lintang-b-s/chroute/pkg/engine/routingalgorithm"
	"github.com/lintang-b-s/chroute/pkg/kv"
	"github.com/lintang-b-s/chroute/pkg/server/rest"
	"github.com/lintang-b-s/chroute/pkg/server/rest/service"
	"github.com/lintang-b-s/chroute/pkg/snap"
	"github.com/lintang-b-s/chroute/pkg/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "net/http/pprof"
)

var (
	snapshotFile = flag.String("snapshot", "./graph.snapshot", "engine snapshot produced by the preprocessing")
	configFile   = flag.String("config", "", "optional yaml config")
	kvDir        = flag.String("kvdir", "./chroute-kv", "badger directory with the street index")
)

func main() {
	flag.Parse()

	cfg, err := config.Read(*configFile)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("loading graph snapshot %s", *snapshotFile)
	snapshot, err := storage.LoadSnapshot(*snapshotFile)
	if err != nil {
		log.Fatal(err)
	}

	queryGraph := datastructure.BuildQueryGraph(int(snapshot.NumNodes), snapshot.Edges)
	routeAlgo := routingalgorithm.NewRouteAlgorithm(queryGraph)
	alternatives := routingalgorithm.NewAlternativeRouteSearchParams(routeAlgo,
		cfg.Alternatives.Alpha, cfg.Alternatives.Epsilon, cfg.Alternatives.Gamma)
	snapper := snap.NewRoadSnapper(snapshot.Nodes)

	db, err := badger.Open(badger.DefaultOptions(*kvDir).WithReadOnly(true))
	if err != nil {
		log.Fatal(err)
	}
	kvDB := kv.NewKVDB(db)
	defer kvDB.Close()

	svc := service.NewNavigationService(routeAlgo, alternatives, snapper, kvDB,
		snapshot.Nodes, snapshot.Names)
	router := rest.NewRouter(svc)
	router.Handle("/metrics", promhttp.Handler())

	log.Printf("chroute engine listening on %s", cfg.Server.ListenAddr)
	if err := http.ListenAndServe(cfg.Server.ListenAddr, router); err != nil {
		log.Fatal(err)
	}
}
