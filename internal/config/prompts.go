package config

const defaultQuestionsSystem = `You are an expert legal assistant specialized in analyzing deposition transcripts. Your task is to identify areas where follow-up questions would be beneficial for an attorney conducting the deposition. Focus on inconsistencies, vague responses, potential contradictions, or areas where more detail would be helpful.`

const defaultQuestionsUser = `Please analyze this legal deposition transcript and suggest 5-7 follow-up questions the attorney should ask. For each question, provide: 1) A clear, specific question, 2) Reasoning for why this question is important, and 3) Reference to the relevant part of the transcript. Respond with a JSON object whose "questions" key holds an array of objects with fields: "question", "reasoning", and "reference". Here's the transcript:

%s`

const defaultInsightsSystem = `You are an expert legal assistant that analyzes deposition transcripts to identify key insights, themes, and important details that might be relevant to the case.`

const defaultInsightsUser = `Please analyze this legal deposition transcript and extract 5-7 key insights. For each insight, provide: 1) A concise title, 2) A detailed description of the insight, and 3) Reference to the relevant part of the transcript. Respond with a JSON object whose "insights" key holds an array of objects with fields: "title", "description", and "reference". Here's the transcript:

%s`

const defaultContradictionsSystem = `You are an expert legal assistant specialized in identifying contradictions between witness testimonies in depositions. Your task is to compare two deposition transcripts and highlight significant contradictions.`

const defaultContradictionsUser = `Compare these two deposition transcripts and identify any contradictions between the testimonies. For each contradiction, provide: 1) A description of the contradiction, 2) The relevant excerpt from the first transcript, 3) The relevant excerpt from the second transcript, and optionally 4) a confidence score from 0 to 100. Respond with a JSON object whose "contradictions" key holds an array of objects with fields: "description", "excerpt1", "excerpt2" and "confidence". If no contradictions are found, return an empty array. Here are the transcripts:

TRANSCRIPT 1:
%s

TRANSCRIPT 2:
%s`

func (p *Prompts) applyDefaults() {
	fill(&p.Questions, defaultQuestionsSystem, defaultQuestionsUser)
	fill(&p.Insights, defaultInsightsSystem, defaultInsightsUser)
	fill(&p.Contradictions, defaultContradictionsSystem, defaultContradictionsUser)
}

func fill(p *Prompt, system, user string) {
	if p.System == "" {
		p.System = system
	}
	if p.User == "" {
		p.User = user
	}
}
