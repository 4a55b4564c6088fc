package ebm

import (
	"log"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

//ReadNpy reads the content of an npy file into a dense matrix.
func ReadNpy(fileName string) (denseMat *mat.Dense) {
	f, err := os.Open(fileName)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { HandleError(f.Close()) }()

	r, err := npyio.NewReader(f)
	if err != nil {
		log.Fatal(err)
	}

	denseMat = &mat.Dense{}
	HandleError(r.Read(denseMat))
	return
}

//WriteNpy writes a dense matrix as an npy file.
func WriteNpy(fileName string, denseMat *mat.Dense) error {
	dst, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer func() { HandleError(dst.Close()) }()
	return npyio.Write(dst, denseMat)
}

//BinColumnsFromDense converts a matrix of pre-binned feature values into
//per-feature bin columns, checking that every value is a small nonnegative
//integer. The binning step itself happens upstream; this only moves its
//output into dataset storage.
func BinColumnsFromDense(binned *mat.Dense) ([][]uint16, []int) {
	h, w := binned.Dims()
	columns := make([][]uint16, w)
	maxBins := make([]int, w)
	for q := 0; q < w; q++ {
		columns[q] = make([]uint16, h)
		for p := 0; p < h; p++ {
			val := binned.At(p, q)
			iBin := int(val)
			if float64(iBin) != val || iBin < 0 || iBin > kStorageBinMax {
				log.Panicf("feature %d sample %d holds %g, expected a bin index in [0, %d]", q, p, val, kStorageBinMax)
			}
			columns[q][p] = uint16(iBin)
			if iBin+1 > maxBins[q] {
				maxBins[q] = iBin + 1
			}
		}
	}
	for q := range maxBins {
		if maxBins[q] < 2 {
			maxBins[q] = 2
		}
	}
	return columns, maxBins
}
