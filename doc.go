// Package preflow is a dependency-aware pipeline engine which schedules
// feature-engineering and statistical operators over partitioned tabular
// data. Operators are grouped into ordered phases such that any operator
// consuming a previously-computed statistic always runs in a strictly later
// phase than the operator producing it, while transformed intermediate data
// is materialized as rarely as possible.
//
// This package defines the public contracts (operators, datasets, partitions,
// writers and statistic backends). The engine itself lives in the workflow
// subpackage, with reference collaborator implementations under datasource.
package preflow
