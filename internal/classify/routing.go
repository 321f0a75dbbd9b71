package classify

type route struct {
	letter   string
	team     string
	pipeline string
}

var routes = map[CaseType]route{
	TypeComplaint:       {letter: "complaint_tier1", team: "HMRC Complaints Team", pipeline: "complaint"},
	TypePenaltyAppeal:   {letter: "penalty_appeal", team: "HMRC Appeals and Reviews", pipeline: "penalty_appeal"},
	TypeStatutoryReview: {letter: "statutory_review_request", team: "HMRC Statutory Review Team", pipeline: "statutory_review"},
	TypeTribunalAppeal:  {letter: "tribunal_notice_of_appeal", team: "First-tier Tribunal (Tax Chamber)", pipeline: "tribunal_appeal"},
}

// RouteFor looks up letter types and recipient for a decision. A mixed case
// leads with the stronger of its two halves and carries the other as the
// secondary letter.
func RouteFor(primary CaseType, secondary *CaseType) Routing {
	if primary == TypeMixed {
		lead, other := TypeComplaint, TypePenaltyAppeal
		if secondary != nil && *secondary == TypePenaltyAppeal {
			lead, other = TypePenaltyAppeal, TypeComplaint
		}
		return Routing{
			PrimaryLetterType:   routes[lead].letter,
			SecondaryLetterType: routes[other].letter,
			RecipientTeam:       routes[lead].team,
			Pipeline:            string(TypeMixed),
		}
	}
	r, ok := routes[primary]
	if !ok {
		r = routes[TypeComplaint]
	}
	out := Routing{PrimaryLetterType: r.letter, RecipientTeam: r.team, Pipeline: r.pipeline}
	if secondary != nil {
		if s, ok := routes[*secondary]; ok {
			out.SecondaryLetterType = s.letter
		}
	}
	return out
}
