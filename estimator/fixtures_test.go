package estimator

import "math"

func intPtr(v int) *int { return &v }

func record(sex string, h, w float64, age *int, m map[Field]float64) Record {
	return Record{Sex: sex, HeightCm: h, WeightKg: w, Age: age, Measurements: m}
}

// clusteredDataset returns 50 male records with heights in [160,190] and
// weights in [55,95]. 36 of them sit around 178cm/75kg, the rest are spread
// over the whole range. Waist is chest/1.02 so a rectangle subject needs no
// shape correction.
func clusteredDataset() []Record {
	out := make([]Record, 0, 50)
	for i := 0; i < 50; i++ {
		var h, w float64
		if i < 36 {
			h = 175 + float64(i%7)
			w = 70 + float64(i%9)*1.2
		} else {
			j := float64(i - 36)
			h = 160 + j*2
			w = 55 + j*3
		}
		chest := math.Round((20+0.25*h+0.45*w+float64(i%5))*10) / 10
		out = append(out, record("M", h, w, intPtr(25+i%10), map[Field]float64{
			ChestCm:       chest,
			WaistCm:       chest / 1.02,
			NeckCm:        38 + float64(i%4)*0.5,
			HipCm:         95 + float64(i%6),
			ShoulderCm:    45 + float64(i%3)*0.5,
			SleeveRightCm: 63 + float64(i%5)*0.4,
			SleeveLeftCm:  63 + float64(i%5)*0.4,
			BicepCm:       31 + float64(i%4)*0.5,
			WristCm:       17 + float64(i%3)*0.2,
		}))
	}
	return out
}
