package session

// NSE trading holidays for 2026, venue-local dates.
// Source: NSE India official holiday list; tentative dates depend on
// lunar sightings and may shift by a day.
var nseHolidays2026 = map[string]bool{
	"2026-01-26": true, // Republic Day
	"2026-02-17": true, // Mahashivratri (tentative)
	"2026-03-14": true, // Holi
	"2026-03-31": true, // Id-ul-Fitr (tentative)
	"2026-04-02": true, // Ram Navami (tentative)
	"2026-04-06": true, // Mahavir Jayanti
	"2026-04-10": true, // Good Friday
	"2026-04-14": true, // Dr. Ambedkar Jayanti
	"2026-05-01": true, // Maharashtra Day
	"2026-06-07": true, // Bakrid / Eid ul-Adha (tentative)
	"2026-07-06": true, // Muharram (tentative)
	"2026-08-15": true, // Independence Day
	"2026-08-16": true, // Janmashtami (tentative)
	"2026-09-05": true, // Milad-un-Nabi (tentative)
	"2026-10-02": true, // Mahatma Gandhi Jayanti
	"2026-10-20": true, // Dussehra
	"2026-10-21": true, // Dussehra (tentative)
	"2026-11-05": true, // Diwali / Lakshmi Puja (tentative)
	"2026-11-06": true, // Diwali Balipratipada (tentative)
	"2026-11-07": true, // Bhai Dooj (tentative)
	"2026-11-19": true, // Guru Nanak Jayanti
	"2026-12-25": true, // Christmas
}
