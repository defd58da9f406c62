// Package rve generates discrete representative volume elements (RVEs) of
// polycrystalline steel on a periodic voxel grid.
//
// # Reading Guide
//
// Start with these files to understand the pipeline:
//   - grid.go, label.go: the periodic n^3 lattice and its tagged voxel labels
//   - growth.go: the shared front-based growth stepper and its claim policies
//   - generator.go: the pipeline from sampled grains to the final labeling
//
// # Pipeline
//
// Generator.Run executes, in order:
//   - BandLayout (band.go): martensite band slabs stamped as BandMarker
//   - GrainCatalog (catalog.go): sampled grains shrunk, sorted, numbered
//   - RSAEngine (rsa.go): band pass, then matrix pass; capped growth
//   - Tessellation (tessellation.go): uncapped growth until no voxel is unassigned
//   - InclusionPlacer (inclusion.go): all-or-nothing stamps inside single grains
//   - PeriodicityRepair (periodicity.go): fragment repair and dense final IDs
//
// Growth claims are resolved serially in ascending grain ID, so output for a
// fixed seed does not depend on GrowthConfig.Workers.
//
// # Sub-packages
//
//   - rve/input/: GrainSource implementations (distributions, measured tables)
//   - rve/trace/: growth trace records and summaries
//   - rve/export/: grain and voxel tables, run header
//   - rve/store/: SQLite run registry
//   - rve/report/: figures
package rve
