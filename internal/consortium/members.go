package consortium

var bclaMembers = []Institution{
	{UnitID: 156189, Name: "Alice Lloyd College"},
	{UnitID: 156295, Name: "Berea College"},
	{UnitID: 237181, Name: "Bethany College"},
	{UnitID: 231554, Name: "Bluefield University"},
	{UnitID: 198066, Name: "Brevard College"},
	{UnitID: 219790, Name: "Bryan College-Dayton"},
	{UnitID: 156365, Name: "Campbellsville University"},
	{UnitID: 219806, Name: "Carson-Newman University"},
	{UnitID: 237358, Name: "Davis & Elkins College"},
	{UnitID: 232025, Name: "Emory & Henry University"},
	{UnitID: 232089, Name: "Ferrum College"},
	{UnitID: 220473, Name: "Johnson University"},
	{UnitID: 132879, Name: "Johnson University Florida"},
	{UnitID: 157100, Name: "Kentucky Christian University"},
	{UnitID: 220516, Name: "King University"},
	{UnitID: 220613, Name: "Lee University"},
	{UnitID: 198808, Name: "Lees-McRae College"},
	{UnitID: 198835, Name: "Lenoir-Rhyne University"},
	{UnitID: 220631, Name: "Lincoln Memorial University"},
	{UnitID: 157216, Name: "Lindsey Wilson College"},
	{UnitID: 198899, Name: "Mars Hill University"},
	{UnitID: 220710, Name: "Maryville College"},
	{UnitID: 486901, Name: "Milligan University"},
	{UnitID: 199032, Name: "Montreat College"},
	{UnitID: 221731, Name: "Tennessee Wesleyan University"},
	{UnitID: 221519, Name: "The University of the South"},
	{UnitID: 221953, Name: "Tusculum University"},
	{UnitID: 157863, Name: "Union College"},
	{UnitID: 237312, Name: "University of Charleston"},
	{UnitID: 157535, Name: "University of Pikeville"},
	{UnitID: 199865, Name: "Warren Wilson College"},
	{UnitID: 237969, Name: "West Virginia Wesleyan College"},
	{UnitID: 238078, Name: "Wheeling University"},
	{UnitID: 141361, Name: "Young Harris College"},
}
