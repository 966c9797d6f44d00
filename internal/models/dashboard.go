package models

// DashboardStats counts the patient's appointments by stage.
type DashboardStats struct {
	UpcomingBookings  int `json:"upcomingBookings"`
	CompletedBookings int `json:"completedBookings"`
	WaitingBookings   int `json:"waitingBookings"`
	TotalBookings     int `json:"totalBookings"`
}

// Dashboard is the patient's overview: the counters and the next appointment, if any.
type Dashboard struct {
	Stats       DashboardStats `json:"stats"`
	NextBooking *Booking       `json:"nextBooking"`
}
