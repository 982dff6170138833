package bloom

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateIsZeroWhenEmpty(t *testing.T) {
	f := New()
	assert.Equal(t, float64(0), f.Estimate())
}

func TestEstimateGrowsWithDistinctInserts(t *testing.T) {
	f := New()
	for i := 0; i < 50; i++ {
		f.InsertIP(net.IPv4(10, 0, byte(i/256), byte(i%256)))
	}
	assert.Greater(t, f.Estimate(), float64(0))
}

func TestInsertSameIPTwiceDoesNotDoubleCount(t *testing.T) {
	f1 := New()
	f1.InsertIP(net.IPv4(1, 2, 3, 4))
	once := f1.Estimate()

	f1.InsertIP(net.IPv4(1, 2, 3, 4))
	twice := f1.Estimate()

	assert.Equal(t, once, twice, "re-inserting the same IP must not change the estimate")
}

func TestEstimateRoughlyTracksDistinctCount(t *testing.T) {
	f := New()
	const n = 200
	for i := 0; i < n; i++ {
		f.InsertIP(net.IPv4(172, 16, byte(i/256), byte(i%256)))
	}
	est := f.Estimate()
	// This is a cardinality *estimator*, not an exact counter; assert only
	// that it lands in the right order of magnitude.
	assert.InDeltaf(t, float64(n), est, float64(n), "estimate %v too far from actual %d", est, n)
}

func ExampleFilter_InsertIP() {
	f := New()
	f.InsertIP(net.IPv4(1, 1, 1, 1))
	fmt.Println(f.Estimate() > 0)
	// Output: true
}
