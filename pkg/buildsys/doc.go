// Package buildsys drives the CMake/Ninja build of Faabric.
// Project paths and toolchain settings come from a Starlark settings script
// (build.star) and every external command runs through the mvdan.cc/sh
// interpreter as a list of words, so arguments are never re-split or globbed.
package buildsys
