package mesher

import "github.com/annel0/voxel-core/internal/world/block"

func (m *Mesher) mergeTop()    { m.mergeFlatZ(block.FaceTop) }
func (m *Mesher) mergeBottom() { m.mergeFlatZ(block.FaceBottom) }
func (m *Mesher) mergeFront()  { m.mergeUp(block.FaceFront, m.allQuads(block.FaceFront)) }
func (m *Mesher) mergeBack()   { m.mergeUp(block.FaceBack, m.allQuads(block.FaceBack)) }

func (m *Mesher) mergeRight() {
	m.mergeUp(block.FaceRight, m.mergeSideZ(block.FaceRight, [2]int{0, 1}, [2]int{3, 2}, -1))
}

func (m *Mesher) mergeLeft() {
	m.mergeUp(block.FaceLeft, m.mergeSideZ(block.FaceLeft, [2]int{3, 2}, [2]int{0, 1}, 1))
}

func (m *Mesher) allQuads(f int) []int {
	m.quads = m.quads[:0]
	for i := 0; i < len(m.layer[f]); i += 4 {
		m.quads = append(m.quads, i)
	}
	return m.quads
}

// mergeFlatZ переносит горизонтальные грани слоя в итоговый список,
// растягивая квад вдоль +z, пока следующий квад того же столбца совпадает с ним.
func (m *Mesher) mergeFlatZ(f int) {
	l := m.layer[f]
	for i := 0; i < len(l); i += 4 {
		if l[i].Merge == -1 {
			continue
		}
		qi := len(m.final[f])
		m.final[f] = append(m.final[f], l[i:i+4]...)
		q := m.final[f][qi : qi+4]
		if q[0].Merge == 0 || !CompareVerticesLight(&q[0], &q[1]) || !CompareVerticesLight(&q[2], &q[3]) {
			continue
		}
		for j := i + 4; j < len(l); j += 4 {
			if l[j].Merge < 1 {
				continue
			}
			if !CompareVerticesLight(&l[j], &l[j+1]) || !CompareVerticesLight(&l[j+2], &l[j+3]) {
				l[j].Merge = 0
				continue
			}
			if int(l[j+1].Position[2]) > int(q[1].Position[2])+7 {
				break
			}
			if q[0].Position[0] != l[j].Position[0] || q[2].Position[0] != l[j+2].Position[0] {
				continue
			}
			if !CompareVertices(&q[1], &l[j]) || !CompareVertices(&q[2], &l[j+3]) {
				break
			}
			q[1].Position[2] += 7
			q[2].Position[2] += 7
			q[1].Tex[1]--
			q[2].Tex[1]--
			l[j].Merge = -1
		}
	}
}

// mergeSideZ сливает боковые грани (±x) внутри слоя вдоль +z.
// far вершины квада на стороне +z, near соответствующие им вершины следующего квада.
// Возвращает индексы уцелевших квадов слоя.
func (m *Mesher) mergeSideZ(f int, far, near [2]int, texDelta int8) []int {
	l := m.layer[f]
	m.quads = m.quads[:0]
	for i := 0; i < len(l); i += 4 {
		if l[i].Merge == -1 {
			continue
		}
		m.quads = append(m.quads, i)
		if l[i].Merge == 0 || !CompareVerticesLight(&l[i], &l[i+3]) || !CompareVerticesLight(&l[i+1], &l[i+2]) {
			continue
		}
		for j := i + 4; j < len(l); j += 4 {
			if l[j].Merge < 1 {
				continue
			}
			if !CompareVerticesLight(&l[j], &l[j+3]) || !CompareVerticesLight(&l[j+1], &l[j+2]) {
				l[j].Merge = 0
				continue
			}
			if int(l[j+far[1]].Position[2]) > int(l[i+far[1]].Position[2])+7 {
				break
			}
			if l[i].Position[0] != l[j].Position[0] {
				continue
			}
			if !CompareVertices(&l[i+far[0]], &l[j+near[0]]) || !CompareVertices(&l[i+far[1]], &l[j+near[1]]) {
				break
			}
			for _, k := range far {
				l[i+k].Position[2] += 7
				l[i+k].Tex[0] += uint8(texDelta)
			}
			l[j].Merge = -1
		}
	}
	return m.quads
}

// upKey координата z, по которой упорядочены квады вертикальной грани
func upKey(f int, q []BlockVertex) uint8 {
	if f == block.FaceLeft {
		return q[0].Position[2]
	}
	return q[2].Position[2]
}

// linedUp проверяет, что квад предыдущего слоя стоит точно под текущим
func linedUp(f int, p, c []BlockVertex) bool {
	switch f {
	case block.FaceRight:
		return p[0].Position[2] == c[0].Position[2] && p[0].Position[0] == c[0].Position[0]
	case block.FaceLeft:
		return p[2].Position[2] == c[2].Position[2] && p[0].Position[0] == c[0].Position[0]
	default:
		return p[2].Position[0] == c[2].Position[0] && p[0].Position[0] == c[0].Position[0]
	}
}

// mergeUp переносит вертикальные грани слоя в итоговый список. Квад, который
// продолжает квад предыдущего слоя, не добавляется: вместо этого тот растягивается на +y.
func (m *Mesher) mergeUp(f int, quads []int) {
	prev := m.prev[f][m.curPrev[f]]
	m.curPrev[f] ^= 1
	next := m.prev[f][m.curPrev[f]][:0]
	l := m.layer[f]

	if len(prev) > 0 {
		for _, qi := range quads {
			cur := l[qi : qi+4]
			if CompareVerticesLight(&cur[0], &cur[1]) && CompareVerticesLight(&cur[2], &cur[3]) {
				cur[0].Merge = 1
				fin := m.final[f]
				ck := upKey(f, cur)
				for _, qj := range prev {
					p := fin[qj : qj+4]
					pk := upKey(f, p)
					if pk < ck {
						continue
					}
					if pk > ck {
						break
					}
					if linedUp(f, p, cur) && CompareVertices(&cur[1], &p[0]) && CompareVertices(&cur[2], &p[3]) {
						p[0].Position[1] += 7
						p[3].Position[1] += 7
						p[0].Tex[1]++
						p[3].Tex[1]++
						next = append(next, qj)
						cur[0].Merge = -1
						break
					}
				}
			} else {
				cur[0].Merge = 0
			}
			if cur[0].Merge != -1 {
				if cur[0].Merge > 0 {
					next = append(next, len(m.final[f]))
				}
				m.final[f] = append(m.final[f], cur...)
			}
		}
	} else {
		for _, qi := range quads {
			cur := l[qi : qi+4]
			if cur[0].Merge > 0 && CompareVertices(&cur[0], &cur[1]) && CompareVertices(&cur[2], &cur[3]) {
				next = append(next, len(m.final[f]))
			}
			m.final[f] = append(m.final[f], cur...)
		}
	}
	m.prev[f][m.curPrev[f]] = next
}
