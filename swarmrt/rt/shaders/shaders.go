package shaders

import (
	_ "embed"
	"strconv"
	"strings"
)

//go:embed boids.wgsl
var BoidsWGSL string

// BoidsEntryPoint is the compute entry point of BoidsWGSL.
const BoidsEntryPoint = "main"

const workgroupSizeToken = "WORKGROUP_SIZE"

// Boids returns the boids kernel with a groupSize x groupSize x 1 work group.
func Boids(groupSize int) string {
	return strings.ReplaceAll(BoidsWGSL, workgroupSizeToken, strconv.Itoa(groupSize))
}
