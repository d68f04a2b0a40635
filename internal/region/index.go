package region

// Index is the name and code lookup structure built once per Catalog.
//
// Name tables map a raw catalog name to every entry carrying it, since names
// repeat across parents (many cities have a "城关区"). Parent → children lists
// keep the catalog's ascending code order and back scoped enumeration for
// fuzzy search. An Index is read-only after NewIndex returns.
type Index struct {
	Provinces map[string][]Province
	Cities    map[string][]City
	Districts map[string][]District

	provinceList   []Province
	provinceByCode map[string]Province
	cityByCode     map[string]City
	districtByCode map[string]District
	citiesOf       map[string][]City
	districtsOf    map[string][]District
}

// NewIndex builds the index from the catalog's tree walk, so branches the
// walk skips never reach the index either.
func NewIndex(c *Catalog) *Index {
	idx := &Index{
		Provinces:      make(map[string][]Province),
		Cities:         make(map[string][]City),
		Districts:      make(map[string][]District),
		provinceByCode: make(map[string]Province),
		cityByCode:     make(map[string]City),
		districtByCode: make(map[string]District),
		citiesOf:       make(map[string][]City),
		districtsOf:    make(map[string][]District),
	}

	for _, a := range c.Addresses() {
		if _, ok := idx.provinceByCode[a.Province.Code]; !ok {
			idx.provinceByCode[a.Province.Code] = a.Province
			idx.provinceList = append(idx.provinceList, a.Province)
			idx.Provinces[a.Province.Name] = append(idx.Provinces[a.Province.Name], a.Province)
		}

		cityKey := a.Province.Code + "/" + a.City.Code
		if _, ok := idx.cityByCode[cityKey]; !ok {
			idx.cityByCode[cityKey] = a.City
			idx.citiesOf[a.Province.Code] = append(idx.citiesOf[a.Province.Code], a.City)
			idx.Cities[a.City.Name] = append(idx.Cities[a.City.Name], a.City)
		}

		if !a.HasDistrict() {
			continue
		}
		districtKey := cityKey + "/" + a.District.Code
		if _, ok := idx.districtByCode[districtKey]; !ok {
			idx.districtByCode[districtKey] = a.District
			idx.districtsOf[cityKey] = append(idx.districtsOf[cityKey], a.District)
			idx.Districts[a.District.Name] = append(idx.Districts[a.District.Name], a.District)
		}
	}
	return idx
}

// AllProvinces returns every province in code order.
func (idx *Index) AllProvinces() []Province {
	return idx.provinceList
}

// Province looks up a province by code.
func (idx *Index) Province(code string) (Province, bool) {
	p, ok := idx.provinceByCode[code]
	return p, ok
}

// City looks up a city by its province and city code.
func (idx *Index) City(provinceCode, code string) (City, bool) {
	c, ok := idx.cityByCode[provinceCode+"/"+code]
	return c, ok
}

// District looks up a district by its full code path.
func (idx *Index) District(provinceCode, cityCode, code string) (District, bool) {
	d, ok := idx.districtByCode[provinceCode+"/"+cityCode+"/"+code]
	return d, ok
}

// CitiesOf returns the cities under a province in code order.
func (idx *Index) CitiesOf(provinceCode string) []City {
	return idx.citiesOf[provinceCode]
}

// DistrictsOf returns the districts under a city in code order.
func (idx *Index) DistrictsOf(provinceCode, cityCode string) []District {
	return idx.districtsOf[provinceCode+"/"+cityCode]
}
