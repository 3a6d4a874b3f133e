package veiled

import (
	"fmt"
	"math/bits"

	"github.com/bwesterb/go-ristretto"
	"github.com/gtank/merlin"
)

// InnerProductProof is the logarithmic argument that two committed vectors
// have a claimed inner product. It backs the single-value range proof.
type InnerProductProof struct {
	LVec []*ristretto.Point
	RVec []*ristretto.Point
	A    *ristretto.Scalar
	B    *ristretto.Scalar
}

// CreateInnerProductProof folds aVec and bVec down to two scalars. hFactors
// scale the H generators before folding (the range proof passes the powers
// of y^-1); gVec, hVec, aVec and bVec are consumed.
func CreateInnerProductProof(transcript *merlin.Transcript, Q *ristretto.Point, hFactors []*ristretto.Scalar, gVec, hVec []*ristretto.Point, aVec, bVec []*ristretto.Scalar) *InnerProductProof {
	n := len(gVec)
	if len(hVec) != n || len(aVec) != n || len(bVec) != n || len(hFactors) != n {
		panic(fmt.Sprintf("CreateInnerProductProof invalid input vectors %d, %d, %d, %d, %d", len(gVec), len(hVec), len(aVec), len(bVec), len(hFactors)))
	}
	if bits.OnesCount32(uint32(n)) > 1 {
		panic(fmt.Sprintf("CreateInnerProductProof invalid n %d", n))
	}

	G := gVec
	H := make([]*ristretto.Point, n)
	for i := range hVec {
		var h ristretto.Point
		h.ScalarMult(hVec[i], hFactors[i])
		H[i] = &h
	}
	a := aVec
	b := bVec

	InnerproductDomainSep(uint64(n), transcript)

	var LVec, RVec []*ristretto.Point
	for n > 1 {
		n = n / 2
		aL, aR := a[:n], a[n:]
		bL, bR := b[:n], b[n:]
		gL, gR := G[:n], G[n:]
		hL, hR := H[:n], H[n:]

		cL := innerProduct(aL, bR)
		cR := innerProduct(aR, bL)

		chainL := make([]*ristretto.Scalar, 0, 2*n+1)
		chainL = append(chainL, aL...)
		chainL = append(chainL, bR...)
		chainL = append(chainL, cL)
		basesL := make([]*ristretto.Point, 0, 2*n+1)
		basesL = append(basesL, gR...)
		basesL = append(basesL, hL...)
		basesL = append(basesL, Q)
		L := multiscalarMul(chainL, basesL)

		chainR := make([]*ristretto.Scalar, 0, 2*n+1)
		chainR = append(chainR, aR...)
		chainR = append(chainR, bL...)
		chainR = append(chainR, cR)
		basesR := make([]*ristretto.Point, 0, 2*n+1)
		basesR = append(basesR, gL...)
		basesR = append(basesR, hR...)
		basesR = append(basesR, Q)
		R := multiscalarMul(chainR, basesR)

		LVec = append(LVec, L)
		RVec = append(RVec, R)
		AppendPoint("L", L, transcript)
		AppendPoint("R", R, transcript)

		u := ChallengeScalar("u", transcript)
		var uInv ristretto.Scalar
		uInv.Inverse(u)

		for i := 0; i < n; i++ {
			var r1, r2 ristretto.Scalar
			aL[i].Add(r1.Mul(aL[i], u), r2.Mul(&uInv, aR[i]))
			var r3, r4 ristretto.Scalar
			bL[i].Add(r3.Mul(bL[i], &uInv), r4.Mul(u, bR[i]))
			gL[i] = multiscalarMul([]*ristretto.Scalar{&uInv, u}, []*ristretto.Point{gL[i], gR[i]})
			hL[i] = multiscalarMul([]*ristretto.Scalar{u, &uInv}, []*ristretto.Point{hL[i], hR[i]})
		}

		a = aL
		b = bL
		G = gL
		H = hL
	}

	return &InnerProductProof{
		LVec: LVec,
		RVec: RVec,
		A:    a[0],
		B:    b[0],
	}
}

// Verify checks the folded argument against the commitment P, which the
// caller must have assembled as <a,G> + <b,hFactors*H> + <a,b>*Q.
func (p *InnerProductProof) Verify(transcript *merlin.Transcript, Q, P *ristretto.Point, hFactors []*ristretto.Scalar, gVec, hVec []*ristretto.Point) bool {
	n := len(gVec)
	k := len(p.LVec)
	if len(p.RVec) != k || k > 31 || n != 1<<k || len(hVec) != n || len(hFactors) != n {
		return false
	}
	if p.A == nil || p.B == nil {
		return false
	}

	InnerproductDomainSep(uint64(n), transcript)

	u := make([]*ristretto.Scalar, k)
	uSq := make([]*ristretto.Scalar, k)
	uInvSq := make([]*ristretto.Scalar, k)
	for j := 0; j < k; j++ {
		AppendPoint("L", p.LVec[j], transcript)
		AppendPoint("R", p.RVec[j], transcript)
		u[j] = ChallengeScalar("u", transcript)

		var sq, inv, invSq ristretto.Scalar
		sq.Mul(u[j], u[j])
		inv.Inverse(u[j])
		invSq.Mul(&inv, &inv)
		uSq[j] = &sq
		uInvSq[j] = &invSq
	}

	// s[0] = prod(u_j^-1); challenge j flips the bit (k-1-j) of the index.
	s := make([]*ristretto.Scalar, n)
	var s0 ristretto.Scalar
	s0.SetOne()
	for j := 0; j < k; j++ {
		var inv ristretto.Scalar
		inv.Inverse(u[j])
		s0.Mul(&s0, &inv)
	}
	s[0] = &s0
	for i := 1; i < n; i++ {
		si := cloneScalar(s[0])
		for j := 0; j < k; j++ {
			if i&(1<<uint(k-1-j)) != 0 {
				si.Mul(si, uSq[j])
			}
		}
		s[i] = si
	}

	var ab ristretto.Scalar
	ab.Mul(p.A, p.B)

	scalars := make([]*ristretto.Scalar, 0, 2*n+1)
	points := make([]*ristretto.Point, 0, 2*n+1)
	for i := 0; i < n; i++ {
		var gs ristretto.Scalar
		gs.Mul(p.A, s[i])
		scalars = append(scalars, &gs)
		points = append(points, gVec[i])
	}
	for i := 0; i < n; i++ {
		var hs ristretto.Scalar
		hs.Mul(p.B, s[n-1-i])
		hs.Mul(&hs, hFactors[i])
		scalars = append(scalars, &hs)
		points = append(points, hVec[i])
	}
	scalars = append(scalars, &ab)
	points = append(points, Q)
	right := multiscalarMul(scalars, points)

	left := clonePoint(P)
	for j := 0; j < k; j++ {
		var lj, rj ristretto.Point
		lj.ScalarMult(p.LVec[j], uSq[j])
		rj.ScalarMult(p.RVec[j], uInvSq[j])
		left.Add(left, &lj)
		left.Add(left, &rj)
	}

	return bytesEqualPoint(left, right)
}
